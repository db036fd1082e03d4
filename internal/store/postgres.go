// Package store persists canonical chat events in Postgres and serves the
// indexed lookup patterns of the read API.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emeraldlog/chatlogd/internal/event"
	"github.com/emeraldlog/chatlogd/internal/query"
	"github.com/emeraldlog/chatlogd/internal/stats"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by point lookups for absent records.
var ErrNotFound = errors.New("event not found")

// DefaultLookupCap bounds the convenience lookups when the caller passes no cap.
const DefaultLookupCap = 100

// Record is the stored form of a canonical event, as served by the read API.
// Data holds the event in the feed's original nested shape.
type Record struct {
	ID        string          `json:"id"`
	EventType event.Type      `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Channel   *string         `json:"channel,omitempty"`
	RoomID    *string         `json:"room_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Store is the durable persistence layer for chat events.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a connection pool and fails fast if the database is unreachable.
func New(ctx context.Context, dbURL string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Insert persists one classified event, deriving its canonical timestamp
// from the variant: message, user_joined and user_left carry the embedded
// user's last-login time, everything else uses ingestion wall-clock.
func (s *Store) Insert(ctx context.Context, ev event.Event) (Record, error) {
	return s.insertAt(ctx, ev, time.Now())
}

func (s *Store) insertAt(ctx context.Context, ev event.Event, now time.Time) (Record, error) {
	if !ev.Type.Valid() {
		return Record{}, fmt.Errorf("insert event: unknown event type %q", ev.Type)
	}

	ts, err := deriveTimestamp(ev, now)
	if err != nil {
		return Record{}, fmt.Errorf("insert event: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return Record{}, fmt.Errorf("insert event: encode: %w", err)
	}

	rec := Record{
		ID:        NewID(),
		EventType: ev.Type,
		Timestamp: ts,
		Data:      data,
	}

	var userID *int64
	var username, messageText *string
	if ev.Identifier != nil {
		rec.Channel = &ev.Identifier.Channel
		rec.RoomID = &ev.Identifier.RoomID
	}
	if ev.User != nil {
		userID = &ev.User.ID
		username = &ev.User.Username
	}
	if ev.Type == event.TypeMessage {
		joined := strings.Join(ev.Messages, "\n")
		messageText = &joined
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_events
			(id, event_type, ts, channel, room_id, user_id, username, message_text, data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, string(rec.EventType), rec.Timestamp, rec.Channel, rec.RoomID,
		userID, username, messageText, data)
	if err != nil {
		return Record{}, fmt.Errorf("insert event: %w", err)
	}
	return rec, nil
}

// deriveTimestamp applies the per-variant timestamp rule.
func deriveTimestamp(ev event.Event, now time.Time) (time.Time, error) {
	switch ev.Type {
	case event.TypeMessage, event.TypeUserJoined, event.TypeUserLeft:
		if ev.User == nil {
			return time.Time{}, errors.New("event carries no user")
		}
		ts, err := time.Parse(time.RFC3339, ev.User.LastLoggedInAt)
		if err != nil {
			return time.Time{}, fmt.Errorf("user last_logged_in_at: %w", err)
		}
		return ts.UTC(), nil
	default:
		return now.UTC(), nil
	}
}

const recordColumns = "id, event_type, ts, channel, room_id, data"

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var et string
	err := row.Scan(&rec.ID, &et, &rec.Timestamp, &rec.Channel, &rec.RoomID, &rec.Data)
	if err != nil {
		return Record{}, err
	}
	rec.EventType = event.Type(et)
	return rec, nil
}

func (s *Store) queryRecords(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// List runs the composed query with pagination and returns the page plus the
// independent total match count.
func (s *Store) List(ctx context.Context, p query.Params) ([]Record, int64, error) {
	pred := query.Build(p)
	where := pred.WhereClause()

	sql := fmt.Sprintf("SELECT %s FROM chat_events%s ORDER BY %s LIMIT $%d OFFSET $%d",
		recordColumns, where, query.OrderClause(p, pred),
		len(pred.Args)+1, len(pred.Args)+2)
	args := append(append([]any{}, pred.Args...), p.Limit, p.Offset)

	recs, err := s.queryRecords(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	var total int64
	err = s.pool.QueryRow(ctx, "SELECT count(*) FROM chat_events"+where, pred.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return recs, total, nil
}

// GetByID fetches one record, returning ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM chat_events WHERE id = $1", id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return rec, nil
}

// Aggregate computes the faceted statistics for the given filters.
func (s *Store) Aggregate(ctx context.Context, p query.Params) (stats.Stats, error) {
	return stats.Compute(ctx, s.pool, p)
}

func lookupCap(limit int) int {
	if limit <= 0 {
		return DefaultLookupCap
	}
	return limit
}

// MessagesByUsername returns chat messages by exact username, newest first.
func (s *Store) MessagesByUsername(ctx context.Context, username string, limit int) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM chat_events
		WHERE event_type = 'message' AND username = $1
		ORDER BY ts DESC LIMIT $2
	`, username, lookupCap(limit))
}

// MessagesByUserID returns chat messages by user id, newest first.
func (s *Store) MessagesByUserID(ctx context.Context, userID int64, limit int) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM chat_events
		WHERE event_type = 'message' AND user_id = $1
		ORDER BY ts DESC LIMIT $2
	`, userID, lookupCap(limit))
}

// MessagesBetween returns chat messages in [start, end], optionally scoped
// to one room, newest first.
func (s *Store) MessagesBetween(ctx context.Context, start, end time.Time, roomID string, limit int) ([]Record, error) {
	if roomID != "" {
		return s.queryRecords(ctx, `
			SELECT `+recordColumns+` FROM chat_events
			WHERE event_type = 'message' AND ts >= $1 AND ts <= $2 AND room_id = $3
			ORDER BY ts DESC LIMIT $4
		`, start, end, roomID, lookupCap(limit))
	}
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM chat_events
		WHERE event_type = 'message' AND ts >= $1 AND ts <= $2
		ORDER BY ts DESC LIMIT $3
	`, start, end, lookupCap(limit))
}

// SearchMessages returns chat messages matching a full-text pattern,
// optionally scoped to one room, newest first.
func (s *Store) SearchMessages(ctx context.Context, pattern, roomID string, limit int) ([]Record, error) {
	if roomID != "" {
		return s.queryRecords(ctx, `
			SELECT `+recordColumns+` FROM chat_events
			WHERE event_type = 'message'
			  AND text_search @@ plainto_tsquery('simple', $1)
			  AND room_id = $2
			ORDER BY ts DESC LIMIT $3
		`, pattern, roomID, lookupCap(limit))
	}
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM chat_events
		WHERE event_type = 'message'
		  AND text_search @@ plainto_tsquery('simple', $1)
		ORDER BY ts DESC LIMIT $2
	`, pattern, lookupCap(limit))
}

// PurgeExpiredTyping deletes typing events older than the retention window.
// No other event type is auto-expired.
func (s *Store) PurgeExpiredTyping(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM chat_events WHERE event_type = 'typing' AND ts < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge typing events: %w", err)
	}
	return tag.RowsAffected(), nil
}
