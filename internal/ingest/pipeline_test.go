package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emeraldlog/chatlogd/internal/event"
	"github.com/emeraldlog/chatlogd/internal/store"
)

// recordingStore captures inserted events in arrival order.
type recordingStore struct {
	mu     sync.Mutex
	events []event.Event
	fail   bool
}

func (r *recordingStore) Insert(_ context.Context, ev event.Event) (store.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return store.Record{}, fmt.Errorf("write failed")
	}
	r.events = append(r.events, ev)
	return store.Record{ID: store.NewID(), EventType: ev.Type}, nil
}

func (r *recordingStore) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event{}, r.events...)
}

func messageFrame(text string) []byte {
	frame := map[string]any{
		"identifier": `{"channel":"RoomChannel","room_id":"channel32"}`,
		"message": map[string]any{
			"messages": []string{text},
			"user": map[string]any{
				"id":                42,
				"username":          "alice",
				"last_logged_in_at": "2024-01-01T00:00:00Z",
			},
		},
	}
	raw, _ := json.Marshal(frame)
	return raw
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPipelinePersistsInArrivalOrder(t *testing.T) {
	rec := &recordingStore{}
	p := New(rec, 64, slog.Default(), NewMetrics(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	for i := 0; i < 10; i++ {
		p.Submit(messageFrame(fmt.Sprintf("msg-%d", i)))
	}

	waitUntil(t, func() bool { return len(rec.snapshot()) == 10 })

	for i, ev := range rec.snapshot() {
		require.Equal(t, event.TypeMessage, ev.Type)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), ev.Messages[0])
	}
}

func TestPipelineBadFrameDoesNotStopLoop(t *testing.T) {
	rec := &recordingStore{}
	m := NewMetrics(nil)
	p := New(rec, 64, slog.Default(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.Submit([]byte(`{"type":"bogus"}`))
	p.Submit([]byte(`not even json`))
	p.Submit(messageFrame("still alive"))

	waitUntil(t, func() bool { return len(rec.snapshot()) == 1 })
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ParseFailures))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.FramesReceived))
}

func TestPipelineObservesWriteFailures(t *testing.T) {
	rec := &recordingStore{fail: true}
	m := NewMetrics(nil)
	p := New(rec, 64, slog.Default(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.Submit(messageFrame("doomed"))

	waitUntil(t, func() bool { return testutil.ToFloat64(m.WriteFailures) == 1 })
	assert.Empty(t, rec.snapshot())
}

func TestPipelineDropsWhenQueueFull(t *testing.T) {
	rec := &recordingStore{}
	m := NewMetrics(nil)
	p := New(rec, 1, slog.Default(), m)
	// Not started: the queue never drains.

	p.Submit(messageFrame("a"))
	p.Submit(messageFrame("b"))
	p.Submit(messageFrame("c"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueueDrops))
}

func TestPipelineStopsOnCancel(t *testing.T) {
	rec := &recordingStore{}
	p := New(rec, 4, slog.Default(), NewMetrics(nil))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}
