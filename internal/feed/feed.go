// Package feed owns the live websocket connection to the chat service: it
// discovers the endpoint, subscribes to the configured rooms and hands every
// received frame to the ingest pipeline.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emeraldlog/chatlogd/internal/event"
)

// DefaultReconnectDelay is the fixed pause between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// Sink consumes raw frames from the feed.
type Sink interface {
	Submit(frame []byte)
}

// Config carries the connection parameters of the feed.
type Config struct {
	Rooms          []string
	Origin         string
	Cookie         string
	ReconnectDelay time.Duration
}

// Listener maintains the feed connection. Reconnects indefinitely with a
// fixed delay; stops only when its context is cancelled.
type Listener struct {
	resolver Resolver
	sink     Sink
	cfg      Config
	dialer   *websocket.Dialer
	log      *slog.Logger
}

// NewListener builds a feed listener.
func NewListener(resolver Resolver, sink Sink, cfg Config, log *slog.Logger) *Listener {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Listener{
		resolver: resolver,
		sink:     sink,
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		log:      log,
	}
}

// Run drives the connect/read/reconnect loop until ctx is cancelled. A lost
// connection is never fatal; each attempt re-resolves the endpoint.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			l.log.Warn("feed connection lost", "error", err,
				"retry_in", l.cfg.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Listener) connectAndRead(ctx context.Context) error {
	wsURL, err := l.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	if l.cfg.Origin != "" {
		header.Set("Origin", l.cfg.Origin)
	}
	if l.cfg.Cookie != "" {
		header.Set("Cookie", l.cfg.Cookie)
	}

	conn, _, err := l.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	l.log.Info("feed connected", "url", wsURL, "rooms", len(l.cfg.Rooms))

	for _, room := range l.cfg.Rooms {
		cmd, err := subscribeCommand(room)
		if err != nil {
			return err
		}
		if err := conn.WriteJSON(cmd); err != nil {
			return fmt.Errorf("subscribe %s: %w", room, err)
		}
		l.log.Debug("subscribed", "room", room)
	}

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		l.sink.Submit(frame)
	}
}

// command is the ActionCable subscribe envelope; the identifier is a nested
// JSON string.
type command struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
}

func subscribeCommand(roomID string) (command, error) {
	if roomID == "" {
		return command{}, errors.New("subscribe: empty room id")
	}
	id, err := json.Marshal(event.Identifier{Channel: "RoomChannel", RoomID: roomID})
	if err != nil {
		return command{}, err
	}
	return command{Command: "subscribe", Identifier: string(id)}, nil
}
