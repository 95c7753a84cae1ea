// Package protocol defines the wire messages exchanged on a draft
// synchronization channel. Every message is a JSON object with a "type"
// discriminator; payload fields are flattened alongside it.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types sent by the server.
const (
	TypeRoomState     = "room_state"
	TypeUserJoined    = "user_joined"
	TypeUserLeft      = "user_left"
	TypeCursorUpdate  = "cursor_update"
	TypeContentUpdate = "content_update"
	TypePong          = "pong"
)

// Message types sent by a client.
const (
	TypeCursor  = "cursor"
	TypeContent = "content"
	TypePing    = "ping"
)

// User is a participant as carried on the wire.
type User struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Color          string `json:"color"`
	CursorPosition *int   `json:"cursor_position,omitempty"`
}

// Message is the decoded form of one wire message. Fields are populated
// according to Type; consumers switch on Type and must ignore values they
// did not ask for. An unrecognized Type is not an error.
type Message struct {
	Type string `json:"type"`

	// room_state, user_joined, user_left
	Users []User `json:"users,omitempty"`

	// cursor_update, content_update
	UserID string `json:"user_id,omitempty"`

	// cursor, cursor_update; always encoded so position zero survives the wire
	Position int `json:"position"`

	// content, content_update, room_state
	Content string `json:"content,omitempty"`

	// content (outbound)
	CursorPosition int `json:"cursor_position"`
}

// Decode parses one wire message. Only malformed JSON is an error; a
// well-formed object with an unknown type decodes fine and is left to the
// consumer to ignore.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode protocol message: %w", err)
	}
	return msg, nil
}

// Known reports whether typ is a message type this protocol defines.
func Known(typ string) bool {
	switch typ {
	case TypeRoomState, TypeUserJoined, TypeUserLeft, TypeCursorUpdate,
		TypeContentUpdate, TypePong, TypeCursor, TypeContent, TypePing:
		return true
	}
	return false
}

// Cursor builds an outbound cursor message.
func Cursor(position int) Message {
	return Message{Type: TypeCursor, Position: position}
}

// Content builds an outbound content message.
func Content(content string, cursorPosition int) Message {
	return Message{Type: TypeContent, Content: content, CursorPosition: cursorPosition}
}

// Encode serializes a message for the wire.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode protocol message: %w", err)
	}
	return data, nil
}
