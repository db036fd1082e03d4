package event

import (
	"encoding/json"
	"fmt"
)

// ParseError reports a frame that could not be classified into a canonical
// event. It is scoped to a single frame and never fatal to ingestion.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse frame: " + e.Reason
}

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// rawFrame is the untyped envelope every feed frame shares. The identifier
// is a nested JSON string; message is any of a number of shapes.
type rawFrame struct {
	Type       string          `json:"type"`
	Identifier string          `json:"identifier"`
	Message    json.RawMessage `json:"message"`
}

// rawBody is the overlapping shape of the room-scoped message bodies. Field
// presence drives sub-discrimination.
type rawBody struct {
	Messages         *json.RawMessage `json:"messages"`
	Picture          *string          `json:"picture"`
	User             *User            `json:"user"`
	UserConnected    *bool            `json:"user_connected"`
	Typing           *bool            `json:"typing"`
	UserDisconnected *bool            `json:"user_disconnected"`
}

// Parse classifies one raw frame into a canonical event. Classification is
// total over the closed set of event types: either exactly one variant
// matches, or a *ParseError is returned. First match wins, in this order:
//
//  1. welcome
//  2. ping (numeric message)
//  3. confirm_subscription (identifier present)
//  4. room-scoped frames (identifier + message): message, user_joined,
//     typing, user_left
//
// Room-scoped frames must carry an identifier that decodes to an object
// with non-empty channel and room_id, else parsing fails.
func Parse(raw []byte) (Event, error) {
	var frame rawFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, parseErrorf("malformed frame: %v", err)
	}
	return classify(frame)
}

func classify(frame rawFrame) (Event, error) {
	if frame.Type == string(TypeWelcome) {
		return Event{Type: TypeWelcome}, nil
	}

	if frame.Type == string(TypePing) && len(frame.Message) > 0 {
		var value float64
		if err := json.Unmarshal(frame.Message, &value); err == nil {
			return Event{Type: TypePing, PingValue: value}, nil
		}
	}

	if frame.Type == string(TypeConfirmSubscription) && frame.Identifier != "" {
		id, err := parseIdentifier(frame.Identifier)
		if err != nil {
			return Event{}, err
		}
		return Event{Type: TypeConfirmSubscription, Identifier: id}, nil
	}

	if frame.Identifier != "" && len(frame.Message) > 0 {
		id, err := parseIdentifier(frame.Identifier)
		if err != nil {
			return Event{}, err
		}

		var body rawBody
		if err := json.Unmarshal(frame.Message, &body); err != nil {
			return Event{}, parseErrorf("malformed message body: %v", err)
		}

		if body.Messages != nil && body.User != nil {
			var texts []string
			if err := json.Unmarshal(*body.Messages, &texts); err != nil {
				return Event{}, parseErrorf("messages must be a list of strings: %v", err)
			}
			return Event{
				Type:       TypeMessage,
				Identifier: id,
				User:       body.User,
				Messages:   texts,
				Picture:    body.Picture,
			}, nil
		}

		if body.User != nil && body.UserConnected != nil && *body.UserConnected {
			return Event{Type: TypeUserJoined, Identifier: id, User: body.User}, nil
		}

		if body.Typing != nil && *body.Typing && body.User != nil {
			return Event{Type: TypeTyping, Identifier: id, User: body.User}, nil
		}

		if body.User != nil && body.UserDisconnected != nil && *body.UserDisconnected {
			return Event{Type: TypeUserLeft, Identifier: id, User: body.User}, nil
		}
	}

	return Event{}, &ParseError{Reason: "unknown or malformed message type"}
}

// parseIdentifier decodes the nested identifier string and enforces the
// non-empty channel and room_id invariant.
func parseIdentifier(s string) (*Identifier, error) {
	var id Identifier
	if err := json.Unmarshal([]byte(s), &id); err != nil {
		return nil, parseErrorf("invalid identifier: %v", err)
	}
	if id.Channel == "" || id.RoomID == "" {
		return nil, &ParseError{Reason: "invalid identifier: missing channel or room_id"}
	}
	return &id, nil
}
