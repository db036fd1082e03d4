package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper emulates a TTL index: it periodically deletes typing events older
// than the retention window. Other event types are never expired.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

// NewSweeper builds a retention sweeper over the store.
func NewSweeper(st *Store, interval, retention time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{store: st, interval: interval, retention: retention, log: log}
}

// Run sweeps on every tick until the context is cancelled. Failures are
// logged and retried on the next tick.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.store.PurgeExpiredTyping(ctx, w.retention)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error("retention sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				w.log.Debug("expired typing events", "count", n)
			}
		}
	}
}
