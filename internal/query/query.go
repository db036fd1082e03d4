// Package query composes the read-path filter: it turns a set of optional
// request parameters into a single conjunctive SQL predicate plus sort and
// pagination handling.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Pagination bounds. Limits outside [MinLimit, MaxLimit] are a caller error,
// not silently clamped.
const (
	DefaultLimit = 50
	MinLimit     = 1
	MaxLimit     = 200
)

// ErrInvalidLimit is returned by Normalize for out-of-range limits.
var ErrInvalidLimit = fmt.Errorf("limit must be between %d and %d", MinLimit, MaxLimit)

// Params are the optional filters and read options of the messages API.
// Zero values mean "no filter".
type Params struct {
	ID         string
	EventTypes []string
	UserID     *int64
	Username   string
	RoomID     string
	StartDate  *time.Time
	EndDate    *time.Time
	SearchText string

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Normalize applies read-option defaults and validates the limit. It leaves
// filter fields untouched: absent filters are simply omitted from the
// predicate.
func (p *Params) Normalize() error {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit < MinLimit || p.Limit > MaxLimit {
		return ErrInvalidLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.SortBy == "" {
		p.SortBy = "timestamp"
	}
	if !strings.EqualFold(p.SortOrder, "asc") {
		p.SortOrder = "desc"
	} else {
		p.SortOrder = "asc"
	}
	return nil
}

// Predicate is a composed WHERE fragment with positional args. An empty
// predicate matches everything.
type Predicate struct {
	conds []string
	Args  []any
	rank  string
}

// Build composes the conjunctive predicate from all supplied filters. It is
// pure and never fails; absent fields contribute nothing.
func Build(p Params) Predicate {
	var pr Predicate

	add := func(format string, arg any) {
		pr.Args = append(pr.Args, arg)
		pr.conds = append(pr.conds, fmt.Sprintf(format, len(pr.Args)))
	}

	if p.ID != "" {
		add("id = $%d", p.ID)
	}
	switch len(p.EventTypes) {
	case 0:
	case 1:
		add("event_type = $%d", p.EventTypes[0])
	default:
		add("event_type = ANY($%d)", p.EventTypes)
	}
	if p.UserID != nil {
		add("user_id = $%d", *p.UserID)
	}
	if p.Username != "" {
		add("username ILIKE $%d", "%"+escapeLike(p.Username)+"%")
	}
	if p.RoomID != "" {
		add("room_id = $%d", p.RoomID)
	}
	if p.StartDate != nil {
		add("ts >= $%d", *p.StartDate)
	}
	if p.EndDate != nil {
		add("ts <= $%d", *p.EndDate)
	}
	if p.SearchText != "" {
		add("text_search @@ plainto_tsquery('simple', $%d)", p.SearchText)
		pr.rank = fmt.Sprintf("ts_rank(text_search, plainto_tsquery('simple', $%d))", len(pr.Args))
	}

	return pr
}

// WhereClause renders the predicate with a leading " WHERE ", or "" when no
// filter was supplied.
func (pr Predicate) WhereClause() string {
	if len(pr.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(pr.conds, " AND ")
}

// RankExpr is the relevance-score expression bound to the predicate's search
// term, or "" when no text search is active.
func (pr Predicate) RankExpr() string {
	return pr.rank
}

// sortColumns whitelists the sortable fields; anything else falls back to
// the timestamp.
var sortColumns = map[string]string{
	"timestamp":  "ts",
	"event_type": "event_type",
	"user_id":    "user_id",
	"username":   "username",
	"room_id":    "room_id",
	"id":         "id",
}

// OrderClause renders the ORDER BY body for normalized params. When a text
// search is active the relevance score is appended after the primary key.
func OrderClause(p Params, pr Predicate) string {
	col, ok := sortColumns[p.SortBy]
	if !ok {
		col = "ts"
	}
	dir := "DESC"
	if p.SortOrder == "asc" {
		dir = "ASC"
	}
	clause := col + " " + dir
	if pr.rank != "" {
		clause += ", " + pr.rank + " DESC"
	}
	return clause
}

// escapeLike neutralizes LIKE metacharacters so the username filter is a
// literal substring match.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// PageMeta is the pagination envelope returned next to every result page.
type PageMeta struct {
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPageMeta computes pagination metadata from the independent total match
// count. The limit must already be normalized to a positive value.
func NewPageMeta(total int64, limit, offset int) PageMeta {
	if limit < MinLimit {
		limit = DefaultLimit
	}
	page := offset/limit + 1
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PageMeta{
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		Page:       page,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
