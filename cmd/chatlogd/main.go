// chatlogd ingests a live chat-room event feed into Postgres and serves
// filtered and aggregated views over the stored log.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/emeraldlog/chatlogd/internal/config"
	"github.com/emeraldlog/chatlogd/internal/feed"
	"github.com/emeraldlog/chatlogd/internal/handlers"
	"github.com/emeraldlog/chatlogd/internal/httpserver"
	"github.com/emeraldlog/chatlogd/internal/ingest"
	"github.com/emeraldlog/chatlogd/internal/store"
)

// main boots the service: config → store → schema → ingest → HTTP server.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer st.Close()

	// Ensure required tables/indexes exist so `docker compose up` is enough.
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	pipeline := ingest.New(st, cfg.QueueSize, log, ingest.NewMetrics(reg))
	pipeline.Start(ctx)

	go store.NewSweeper(st, cfg.SweepInterval, cfg.TypingTTL, log).Run(ctx)

	var resolver feed.Resolver
	if cfg.FeedURL != "" {
		resolver = feed.StaticResolver(cfg.FeedURL)
	} else {
		resolver = &feed.PageResolver{PageURL: cfg.AppPageURL, Cookie: cfg.FeedCookie}
	}
	listener := feed.NewListener(resolver, pipeline, feed.Config{
		Rooms:          cfg.Rooms,
		Origin:         cfg.FeedOrigin,
		Cookie:         cfg.FeedCookie,
		ReconnectDelay: cfg.ReconnectDelay,
	}, log)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("feed listener stopped", "error", err)
		}
	}()

	router := httpserver.NewRouter(st, st, reg, handlers.Options{
		ExposeDetails: !cfg.Production,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	select {
	case <-pipeline.Done():
	case <-shutdownCtx.Done():
	}
	return nil
}
