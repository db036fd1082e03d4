// Package event defines the canonical chat event model and the frame
// classifier that turns raw feed frames into typed events.
package event

import "encoding/json"

// Type is the closed set of canonical event kinds.
type Type string

const (
	TypePing                Type = "ping"
	TypeMessage             Type = "message"
	TypeUserJoined          Type = "user_joined"
	TypeTyping              Type = "typing"
	TypeUserLeft            Type = "user_left"
	TypeConfirmSubscription Type = "confirm_subscription"
	TypeWelcome             Type = "welcome"
)

// Types lists every valid event type.
var Types = []Type{
	TypePing,
	TypeMessage,
	TypeUserJoined,
	TypeTyping,
	TypeUserLeft,
	TypeConfirmSubscription,
	TypeWelcome,
}

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	switch t {
	case TypePing, TypeMessage, TypeUserJoined, TypeTyping, TypeUserLeft,
		TypeConfirmSubscription, TypeWelcome:
		return true
	}
	return false
}

// Identifier scopes an event to a specific room/channel. The feed carries it
// as a nested JSON string; parsing decodes and validates it.
type Identifier struct {
	Channel string `json:"channel"`
	RoomID  string `json:"room_id"`
}

// Flair is the user's display color.
type Flair struct {
	Color string `json:"color"`
}

// User carries the feed's user profile verbatim. Only Username, ID and
// LastLoggedInAt participate in classification or persistence; the rest is
// kept so stored events round-trip the original payload.
type User struct {
	Badge               *string  `json:"badge"`
	Badges              []string `json:"badges"`
	Bio                 string   `json:"bio"`
	CreatedAt           string   `json:"created_at"`
	DisplayName         string   `json:"display_name"`
	DisplayPicture      string   `json:"display_picture"`
	Flair               Flair    `json:"flair"`
	Gender              string   `json:"gender"`
	Gold                bool     `json:"gold"`
	HasPremiumBadge     bool     `json:"has_premium_badge"`
	ID                  int64    `json:"id"`
	Interests           []string `json:"interests"`
	Karma               int64    `json:"karma"`
	LastLoggedInAt      string   `json:"last_logged_in_at"`
	Master              bool     `json:"master"`
	Mod                 bool     `json:"mod"`
	Online              bool     `json:"online"`
	Platinum            bool     `json:"platinum"`
	Temp                bool     `json:"temp"`
	ThumbnailPicture    *string  `json:"thumbnail_picture"`
	Username            string   `json:"username"`
	Verified            bool     `json:"verified"`
	VideoChatsVerified  bool     `json:"video_chats_verified"`
}

// Event is the canonical, classified form of one feed frame.
//
// Which fields are set depends on Type:
//
//	welcome               — nothing else
//	ping                  — PingValue
//	confirm_subscription  — Identifier
//	message               — Identifier, User, Messages, Picture
//	user_joined           — Identifier, User
//	typing                — Identifier, User
//	user_left             — Identifier, User
type Event struct {
	Type       Type
	Identifier *Identifier
	User       *User
	Messages   []string
	Picture    *string
	PingValue  float64
}

// MarshalJSON renders the event in the feed's original nested shape so the
// stored document mirrors what was received.
func (e Event) MarshalJSON() ([]byte, error) {
	doc := map[string]any{"type": e.Type}
	if e.Identifier != nil {
		doc["identifier"] = e.Identifier
	}
	switch e.Type {
	case TypePing:
		doc["message"] = e.PingValue
	case TypeMessage:
		doc["message"] = map[string]any{
			"messages": e.Messages,
			"picture":  e.Picture,
			"user":     e.User,
		}
	case TypeUserJoined:
		doc["message"] = map[string]any{
			"user":           e.User,
			"user_connected": true,
		}
	case TypeTyping:
		doc["message"] = map[string]any{
			"typing": true,
			"user":   e.User,
		}
	case TypeUserLeft:
		doc["message"] = map[string]any{
			"user":              e.User,
			"user_disconnected": true,
		}
	}
	return json.Marshal(doc)
}
