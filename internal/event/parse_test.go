package event

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roomIdentifier = `{"channel":"RoomChannel","room_id":"channel32"}`

// testUser builds the minimal user JSON the classifier cares about.
func testUser(id int64, username string) string {
	return fmt.Sprintf(`{"id":%d,"username":%q,"last_logged_in_at":"2024-01-01T00:00:00Z"}`, id, username)
}

func TestParseWelcome(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"welcome"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeWelcome, ev.Type)
	assert.Nil(t, ev.Identifier)
	assert.Nil(t, ev.User)
}

func TestParsePing(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"ping","message":1712345678.25}`))
	require.NoError(t, err)
	assert.Equal(t, TypePing, ev.Type)
	assert.Equal(t, 1712345678.25, ev.PingValue)
}

func TestParsePingNonNumericFails(t *testing.T) {
	_, err := Parse([]byte(`{"type":"ping","message":"pong"}`))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseConfirmSubscription(t *testing.T) {
	raw := `{"type":"confirm_subscription","identifier":"{\"channel\":\"RoomChannel\",\"room_id\":\"channel32\"}"}`
	ev, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, TypeConfirmSubscription, ev.Type)
	require.NotNil(t, ev.Identifier)
	assert.Equal(t, "RoomChannel", ev.Identifier.Channel)
	assert.Equal(t, "channel32", ev.Identifier.RoomID)
}

func TestParseChatMessage(t *testing.T) {
	frame := map[string]any{
		"identifier": roomIdentifier,
		"message": map[string]any{
			"messages": []string{"hello", "world"},
			"picture":  nil,
			"user":     json.RawMessage(testUser(42, "alice")),
		},
	}
	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeMessage, ev.Type)
	assert.Equal(t, []string{"hello", "world"}, ev.Messages)
	assert.Nil(t, ev.Picture)
	require.NotNil(t, ev.User)
	assert.Equal(t, int64(42), ev.User.ID)
	assert.Equal(t, "alice", ev.User.Username)
	require.NotNil(t, ev.Identifier)
	assert.Equal(t, "channel32", ev.Identifier.RoomID)
}

func TestParseUserJoined(t *testing.T) {
	frame := map[string]any{
		"identifier": roomIdentifier,
		"message": map[string]any{
			"user":           json.RawMessage(testUser(7, "bob")),
			"user_connected": true,
		},
	}
	raw, _ := json.Marshal(frame)

	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeUserJoined, ev.Type)
	assert.Equal(t, "bob", ev.User.Username)
}

func TestParseTyping(t *testing.T) {
	frame := map[string]any{
		"identifier": roomIdentifier,
		"message": map[string]any{
			"typing": true,
			"user":   json.RawMessage(testUser(7, "bob")),
		},
	}
	raw, _ := json.Marshal(frame)

	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeTyping, ev.Type)
}

func TestParseUserLeft(t *testing.T) {
	frame := map[string]any{
		"identifier": roomIdentifier,
		"message": map[string]any{
			"user":              json.RawMessage(testUser(7, "bob")),
			"user_disconnected": true,
		},
	}
	raw, _ := json.Marshal(frame)

	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeUserLeft, ev.Type)
}

// A message-shaped body takes precedence over presence flags when both the
// messages list and a flag are present.
func TestParsePrecedenceMessageBeforeFlags(t *testing.T) {
	frame := map[string]any{
		"identifier": roomIdentifier,
		"message": map[string]any{
			"messages":       []string{"hi"},
			"user":           json.RawMessage(testUser(7, "bob")),
			"user_connected": true,
		},
	}
	raw, _ := json.Marshal(frame)

	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeMessage, ev.Type)
}

func TestParseInvalidIdentifier(t *testing.T) {
	cases := []struct {
		name       string
		identifier string
	}{
		{"not json", "nope"},
		{"missing room_id", `{"channel":"RoomChannel"}`},
		{"missing channel", `{"room_id":"channel32"}`},
		{"empty fields", `{"channel":"","room_id":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := map[string]any{
				"identifier": tc.identifier,
				"message": map[string]any{
					"typing": true,
					"user":   json.RawMessage(testUser(7, "bob")),
				},
			}
			raw, _ := json.Marshal(frame)

			_, err := Parse(raw)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Reason, "invalid identifier")
		})
	}
}

func TestParseUnknownShapeFails(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bogus type", `{"type":"bogus"}`},
		{"empty object", `{}`},
		{"flag without user", `{"identifier":"{\"channel\":\"RoomChannel\",\"room_id\":\"channel32\"}","message":{"user_connected":true}}`},
		{"messages without user", `{"identifier":"{\"channel\":\"RoomChannel\",\"room_id\":\"channel32\"}","message":{"messages":["hi"]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseNonStringMessagesFails(t *testing.T) {
	frame := map[string]any{
		"identifier": roomIdentifier,
		"message": map[string]any{
			"messages": []any{"hi", 5},
			"user":     json.RawMessage(testUser(7, "bob")),
		},
	}
	raw, _ := json.Marshal(frame)

	_, err := Parse(raw)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestMarshalRoundTripShape(t *testing.T) {
	picture := "https://example.com/p.png"
	ev := Event{
		Type:       TypeMessage,
		Identifier: &Identifier{Channel: "RoomChannel", RoomID: "channel32"},
		User:       &User{ID: 42, Username: "alice"},
		Messages:   []string{"hello"},
		Picture:    &picture,
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "message", doc["type"])
	body, ok := doc["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"hello"}, body["messages"])
	assert.Equal(t, picture, body["picture"])
}
