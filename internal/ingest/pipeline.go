// Package ingest couples the live feed to the event store: frames enter a
// bounded queue and a single consumer classifies and persists them in
// arrival order, observing every write result.
package ingest

import (
	"context"
	"log/slog"

	"github.com/emeraldlog/chatlogd/internal/event"
	"github.com/emeraldlog/chatlogd/internal/store"
)

// Inserter is the slice of the store the pipeline writes through.
type Inserter interface {
	Insert(ctx context.Context, ev event.Event) (store.Record, error)
}

// Pipeline is the write path between frame receipt and persistence. A single
// consumer goroutine preserves arrival order; a full queue drops the frame
// rather than blocking the feed reader.
type Pipeline struct {
	store   Inserter
	queue   chan []byte
	log     *slog.Logger
	metrics *Metrics
	done    chan struct{}
}

// New builds a pipeline with the given queue capacity.
func New(st Inserter, queueSize int, log *slog.Logger, metrics *Metrics) *Pipeline {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Pipeline{
		store:   st,
		queue:   make(chan []byte, queueSize),
		log:     log,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Start launches the consumer. It runs until the context is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-p.queue:
				p.process(ctx, frame)
			}
		}
	}()
}

// Done is closed once the consumer has stopped.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Submit hands one raw frame to the pipeline. It never blocks; when the
// queue is full the frame is dropped and counted.
func (p *Pipeline) Submit(frame []byte) {
	p.metrics.FramesReceived.Inc()
	select {
	case p.queue <- frame:
	default:
		p.metrics.QueueDrops.Inc()
		p.log.Warn("ingest queue full, frame dropped")
	}
}

// process classifies and persists one frame. A bad frame or a failed write
// is logged and dropped; it never stops the pipeline.
func (p *Pipeline) process(ctx context.Context, frame []byte) {
	ev, err := event.Parse(frame)
	if err != nil {
		p.metrics.ParseFailures.Inc()
		p.log.Debug("frame dropped", "error", err)
		return
	}

	rec, err := p.store.Insert(ctx, ev)
	if err != nil {
		p.metrics.WriteFailures.Inc()
		if ctx.Err() == nil {
			p.log.Error("persist event failed", "type", ev.Type, "error", err)
		}
		return
	}

	p.metrics.EventsPersisted.Inc()
	p.log.Debug("event persisted", "id", rec.ID, "type", rec.EventType)
}
