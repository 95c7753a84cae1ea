package collab

import (
	"testing"

	"draftroom/internal/editor"
	"draftroom/internal/presence"
	"draftroom/internal/protocol"
)

func intPtr(v int) *int { return &v }

func TestApplyRoomStateSeedsStore(t *testing.T) {
	store := editor.NewStore()
	session := NewSession(nil, store, "me")

	session.Apply(protocol.Message{
		Type: protocol.TypeRoomState,
		Users: []protocol.User{
			{UserID: "me", Username: "self", Color: "#111111"},
			{UserID: "u2", Username: "bob", Color: "#222222", CursorPosition: intPtr(4)},
		},
		Content: "shared draft",
	})

	state := store.Snapshot()
	if state.Content != "shared draft" {
		t.Fatalf("content = %q", state.Content)
	}
	if len(state.Presence) != 2 {
		t.Fatalf("presence = %v", state.Presence)
	}
	if state.Presence[1].Cursor == nil || *state.Presence[1].Cursor != 4 {
		t.Fatalf("cursor = %v", state.Presence[1].Cursor)
	}
}

func TestApplyRoomStateEmptyContentKeepsLocal(t *testing.T) {
	store := editor.NewStore()
	store.SetContent("local work")
	session := NewSession(nil, store, "me")

	session.Apply(protocol.Message{Type: protocol.TypeRoomState, Users: nil, Content: ""})

	if got := store.Content(); got != "local work" {
		t.Fatalf("content = %q", got)
	}
}

func TestApplyJoinLeaveReplacesPresence(t *testing.T) {
	store := editor.NewStore()
	session := NewSession(nil, store, "me")

	session.Apply(protocol.Message{
		Type:  protocol.TypeUserJoined,
		Users: []protocol.User{{UserID: "me"}, {UserID: "u2"}},
	})
	if state := store.Snapshot(); len(state.Presence) != 2 {
		t.Fatalf("presence = %v", state.Presence)
	}

	session.Apply(protocol.Message{
		Type:  protocol.TypeUserLeft,
		Users: []protocol.User{{UserID: "me"}},
	})
	state := store.Snapshot()
	if len(state.Presence) != 1 || state.Presence[0].UserID != "me" {
		t.Fatalf("presence = %v", state.Presence)
	}
}

func TestApplyContentUpdateIgnoresOwnEcho(t *testing.T) {
	store := editor.NewStore()
	store.SetContent("local")
	session := NewSession(nil, store, "me")

	session.Apply(protocol.Message{Type: protocol.TypeContentUpdate, UserID: "me", Content: "echoed"})
	if got := store.Content(); got != "local" {
		t.Fatalf("own echo applied: %q", got)
	}

	session.Apply(protocol.Message{Type: protocol.TypeContentUpdate, UserID: "u2", Content: "remote"})
	if got := store.Content(); got != "remote" {
		t.Fatalf("content = %q", got)
	}
}

func TestApplyCursorUpdate(t *testing.T) {
	store := editor.NewStore()
	store.SetPresence([]presence.Participant{{UserID: "u2"}})
	session := NewSession(nil, store, "me")

	session.Apply(protocol.Message{Type: protocol.TypeCursorUpdate, UserID: "u2", Position: 0})

	state := store.Snapshot()
	if state.Presence[0].Cursor == nil || *state.Presence[0].Cursor != 0 {
		t.Fatalf("cursor = %v", state.Presence[0].Cursor)
	}
}

func TestApplyUnknownTypeIgnored(t *testing.T) {
	store := editor.NewStore()
	store.SetContent("untouched")
	session := NewSession(nil, store, "me")

	session.Apply(protocol.Message{Type: "future_thing", Content: "payload"})
	if got := store.Content(); got != "untouched" {
		t.Fatalf("content = %q", got)
	}
}
