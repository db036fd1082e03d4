// Package handlers implements the read API endpoints over the event store.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emeraldlog/chatlogd/internal/event"
	"github.com/emeraldlog/chatlogd/internal/models"
	"github.com/emeraldlog/chatlogd/internal/query"
	"github.com/emeraldlog/chatlogd/internal/stats"
	"github.com/emeraldlog/chatlogd/internal/store"
)

// EventStore is the slice of the store the read API consumes.
type EventStore interface {
	List(ctx context.Context, p query.Params) ([]store.Record, int64, error)
	GetByID(ctx context.Context, id string) (store.Record, error)
	Aggregate(ctx context.Context, p query.Params) (stats.Stats, error)
}

// Options tune handler behavior per environment.
type Options struct {
	// ExposeDetails includes error details in 500 responses. Off in
	// production.
	ExposeDetails bool
}

func (o Options) details(err error) any {
	if !o.ExposeDetails {
		return nil
	}
	return err.Error()
}

// RegisterMessageRoutes registers the paginated log view and the point
// lookup.
//
// GET /messages — filters per the query builder; defaults to chat messages
// when no event_type is supplied.
// GET /messages/:id — single event by its 24-hex id.
func RegisterMessageRoutes(r gin.IRoutes, st EventStore, opts Options) {
	r.GET("/messages", func(c *gin.Context) {
		p, err := parseListParams(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidLimit,
				"Limit must be between 1 and 200", nil)
			return
		}
		if len(p.EventTypes) == 0 {
			p.EventTypes = []string{string(event.TypeMessage)}
		}

		data, total, err := st.List(c.Request.Context(), p)
		if err != nil {
			respondError(c, http.StatusInternalServerError, CodeInternalError,
				"An internal server error occurred", opts.details(err))
			return
		}

		c.JSON(http.StatusOK, models.MessageList{
			Data: data,
			Meta: query.NewPageMeta(total, p.Limit, p.Offset),
		})
	})

	r.GET("/messages/:id", func(c *gin.Context) {
		id := c.Param("id")
		if !store.ValidID(id) {
			respondError(c, http.StatusBadRequest, CodeInvalidID,
				"Invalid message ID format", nil)
			return
		}

		rec, err := st.GetByID(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, CodeNotFound,
				"Message not found", nil)
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, CodeInternalError,
				"An internal server error occurred", opts.details(err))
			return
		}

		c.JSON(http.StatusOK, rec)
	})
}
