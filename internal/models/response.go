// Package models defines the read API response envelopes.
package models

import (
	"github.com/emeraldlog/chatlogd/internal/query"
	"github.com/emeraldlog/chatlogd/internal/store"
)

// MessageList is the paginated GET /messages response.
type MessageList struct {
	Data []store.Record `json:"data"`
	Meta query.PageMeta `json:"meta"`
}
