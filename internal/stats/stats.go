// Package stats computes faceted statistics over a predicate-filtered slice
// of the event log. All facets come out of a single SQL statement that scans
// the matched set once (materialized CTE) and unions the per-facet groupings.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/emeraldlog/chatlogd/internal/query"
)

// RankingCap bounds the user and room rankings.
const RankingCap = 20

// Stats is the aggregation result: four facets computed simultaneously.
type Stats struct {
	TotalMessages    int64            `json:"total_messages"`
	MessagesPerRoom  map[string]int64 `json:"messages_per_room"`
	MessagesPerUser  map[string]int64 `json:"messages_per_user"`
	ActiveUsers      []UserActivity   `json:"active_users"`
	TopRooms         []RoomActivity   `json:"top_rooms"`
	MessageFrequency []HourCount      `json:"message_frequency"`
}

// UserActivity is one entry of the active-user ranking. Username is the
// first-seen (oldest timestamp) username within the group.
type UserActivity struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	MessageCount int64  `json:"message_count"`
}

// RoomActivity is one entry of the room ranking.
type RoomActivity struct {
	RoomID       string `json:"room_id"`
	MessageCount int64  `json:"message_count"`
}

// HourCount is the per-hour-of-day message count, hours 0-23.
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// Querier is the slice of the pgx pool the engine needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// facetRow is one row of the union query: a facet tag, the group key, the
// first-seen username (user facet only) and the count.
type facetRow struct {
	facet    string
	key      *string
	username *string
	count    int64
}

// Compute runs the faceted aggregation for the given filters. When the
// caller supplies no explicit event-type filter the predicate defaults to
// chat messages.
func Compute(ctx context.Context, q Querier, p query.Params) (Stats, error) {
	if len(p.EventTypes) == 0 {
		p.EventTypes = []string{"message"}
	}
	pred := query.Build(p)

	sql := `
WITH matched AS MATERIALIZED (
	SELECT room_id, user_id, username, ts
	FROM chat_events` + pred.WhereClause() + `
)
SELECT 'total' AS facet, NULL::text AS key, NULL::text AS username, count(*) AS n
FROM matched
UNION ALL
SELECT 'room', room_id, NULL, count(*)
FROM matched WHERE room_id IS NOT NULL GROUP BY room_id
UNION ALL
SELECT 'user', user_id::text, (array_agg(username ORDER BY ts))[1], count(*)
FROM matched WHERE user_id IS NOT NULL GROUP BY user_id
UNION ALL
SELECT 'hour', extract(hour FROM ts AT TIME ZONE 'UTC')::int::text, NULL, count(*)
FROM matched GROUP BY 2`

	rows, err := q.Query(ctx, sql, pred.Args...)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate query: %w", err)
	}
	defer rows.Close()

	var facets []facetRow
	for rows.Next() {
		var r facetRow
		if err := rows.Scan(&r.facet, &r.key, &r.username, &r.count); err != nil {
			return Stats{}, fmt.Errorf("scan facet row: %w", err)
		}
		facets = append(facets, r)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("aggregate rows: %w", err)
	}

	return fold(facets)
}

// fold assembles the four facets from the union rows. Rankings are capped to
// RankingCap, ordered by count descending with the group key ascending as
// the stable tie-break.
func fold(rows []facetRow) (Stats, error) {
	st := Stats{
		MessagesPerRoom:  map[string]int64{},
		MessagesPerUser:  map[string]int64{},
		ActiveUsers:      []UserActivity{},
		TopRooms:         []RoomActivity{},
		MessageFrequency: []HourCount{},
	}

	var users []UserActivity
	var rooms []RoomActivity

	for _, r := range rows {
		switch r.facet {
		case "total":
			st.TotalMessages = r.count
		case "room":
			if r.key == nil {
				continue
			}
			st.MessagesPerRoom[*r.key] = r.count
			rooms = append(rooms, RoomActivity{RoomID: *r.key, MessageCount: r.count})
		case "user":
			if r.key == nil {
				continue
			}
			id, err := strconv.ParseInt(*r.key, 10, 64)
			if err != nil {
				return Stats{}, fmt.Errorf("user facet key %q: %w", *r.key, err)
			}
			ua := UserActivity{UserID: id, MessageCount: r.count}
			if r.username != nil {
				ua.Username = *r.username
			}
			users = append(users, ua)
		case "hour":
			if r.key == nil {
				continue
			}
			hour, err := strconv.Atoi(*r.key)
			if err != nil {
				return Stats{}, fmt.Errorf("hour facet key %q: %w", *r.key, err)
			}
			st.MessageFrequency = append(st.MessageFrequency, HourCount{Hour: hour, Count: r.count})
		default:
			return Stats{}, fmt.Errorf("unexpected facet %q", r.facet)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].MessageCount != users[j].MessageCount {
			return users[i].MessageCount > users[j].MessageCount
		}
		return users[i].UserID < users[j].UserID
	})
	if len(users) > RankingCap {
		users = users[:RankingCap]
	}
	st.ActiveUsers = users
	for _, u := range users {
		st.MessagesPerUser[strconv.FormatInt(u.UserID, 10)] = u.MessageCount
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].MessageCount != rooms[j].MessageCount {
			return rooms[i].MessageCount > rooms[j].MessageCount
		}
		return rooms[i].RoomID < rooms[j].RoomID
	})
	if len(rooms) > RankingCap {
		rooms = rooms[:RankingCap]
	}
	st.TopRooms = rooms

	sort.Slice(st.MessageFrequency, func(i, j int) bool {
		return st.MessageFrequency[i].Hour < st.MessageFrequency[j].Hour
	})

	return st, nil
}
