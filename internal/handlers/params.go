package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emeraldlog/chatlogd/internal/query"
)

// parseFilters reads the shared filter parameters. Malformed optional
// filters are omitted rather than rejected; the predicate is conjunctive
// over whatever remains.
func parseFilters(c *gin.Context) query.Params {
	p := query.Params{
		Username:   c.Query("username"),
		RoomID:     c.Query("room_id"),
		SearchText: c.Query("search_text"),
	}

	for _, et := range c.QueryArray("event_type") {
		for _, one := range strings.Split(et, ",") {
			if one = strings.TrimSpace(one); one != "" {
				p.EventTypes = append(p.EventTypes, one)
			}
		}
	}

	if raw := c.Query("user_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			p.UserID = &id
		}
	}
	if raw := c.Query("start_date"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := ts.UTC()
			p.StartDate = &utc
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := ts.UTC()
			p.EndDate = &utc
		}
	}

	return p
}

// parseListParams adds the read options on top of the filters. A
// non-numeric or out-of-range limit is a caller error.
func parseListParams(c *gin.Context) (query.Params, error) {
	p := parseFilters(c)
	p.SortBy = c.Query("sort_by")
	p.SortOrder = c.Query("sort_order")

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < query.MinLimit || n > query.MaxLimit {
			return query.Params{}, query.ErrInvalidLimit
		}
		p.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.Offset = n
		}
	}

	if err := p.Normalize(); err != nil {
		return query.Params{}, err
	}
	return p, nil
}
