// Package httpserver wires the read API router.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emeraldlog/chatlogd/internal/handlers"
)

// Pinger is the dependency probed by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires public endpoints and the read API.
// Public: /health, /ready, /metrics
// API (under /api): /messages, /messages/:id, /stats
func NewRouter(st handlers.EventStore, pinger Pinger, gatherer prometheus.Gatherer, opts handlers.Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(RequestID(), RequestLogger())

	handlers.RegisterMessageRoutes(api, st, opts)
	handlers.RegisterStatsRoutes(api, st, opts)

	return r
}
