package collab

import (
	"context"

	"draftroom/internal/editor"
	"draftroom/internal/presence"
	"draftroom/internal/protocol"
)

// Session pumps one channel's inbound messages into an editor store. The
// first message after a (re)connect is a room_state snapshot, which seeds
// both presence and content.
type Session struct {
	ch     *Channel
	store  *editor.Store
	selfID string
}

func NewSession(ch *Channel, store *editor.Store, selfID string) *Session {
	return &Session{ch: ch, store: store, selfID: selfID}
}

// Run applies messages until the channel closes or ctx is done. Messages
// arrive and apply in transport order; a local keystroke racing an
// in-flight remote update resolves last-writer-wins.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.ch.Events():
			if !ok {
				return
			}
			s.Apply(msg)
		}
	}
}

// Apply routes one inbound message into the store. Unknown message types
// are ignored, not errors.
func (s *Session) Apply(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoomState:
		s.store.SetPresence(toParticipants(msg.Users))
		if msg.Content != "" {
			s.store.SetContent(msg.Content)
		}
	case protocol.TypeUserJoined, protocol.TypeUserLeft:
		s.store.SetPresence(toParticipants(msg.Users))
	case protocol.TypeCursorUpdate:
		s.store.UpdateUserCursor(msg.UserID, msg.Position)
	case protocol.TypeContentUpdate:
		if msg.UserID != s.selfID {
			s.store.SetContent(msg.Content)
		}
	case protocol.TypePong:
		// Heartbeat echo.
	}
}

func toParticipants(users []protocol.User) []presence.Participant {
	out := make([]presence.Participant, 0, len(users))
	for _, u := range users {
		out = append(out, presence.Participant{
			UserID:   u.UserID,
			Username: u.Username,
			Color:    u.Color,
			Cursor:   u.CursorPosition,
		})
	}
	return out
}
