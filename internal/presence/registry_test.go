package presence

import "testing"

func TestJoinAddsAndReplaces(t *testing.T) {
	r := NewRegistry()

	got := r.Join("draft:1", Participant{UserID: "u1", Username: "alice", Color: "#ff0000"})
	if len(got) != 1 {
		t.Fatalf("after first join: %v", got)
	}

	got = r.Join("draft:1", Participant{UserID: "u2", Username: "bob", Color: "#00ff00"})
	if len(got) != 2 {
		t.Fatalf("after second join: %v", got)
	}

	// Rejoining with the same UserID replaces the entry instead of
	// duplicating it.
	got = r.Join("draft:1", Participant{UserID: "u1", Username: "alice2", Color: "#0000ff"})
	if len(got) != 2 {
		t.Fatalf("after rejoin: %v", got)
	}
	if got[0].Username != "alice2" || got[0].Color != "#0000ff" {
		t.Fatalf("rejoin did not replace: %+v", got[0])
	}
}

func TestLeaveRemoves(t *testing.T) {
	r := NewRegistry()
	r.Join("draft:1", Participant{UserID: "u1"})
	r.Join("draft:1", Participant{UserID: "u2"})

	got := r.Leave("draft:1", "u1")
	if len(got) != 1 || got[0].UserID != "u2" {
		t.Fatalf("after leave: %v", got)
	}

	got = r.Leave("draft:1", "u2")
	if len(got) != 0 {
		t.Fatalf("after last leave: %v", got)
	}
	if snap := r.Snapshot("draft:1"); len(snap) != 0 {
		t.Fatalf("room not emptied: %v", snap)
	}
}

func TestReplaceAllIsWholesale(t *testing.T) {
	r := NewRegistry()
	pos := 5
	r.Join("draft:1", Participant{UserID: "u1", Cursor: &pos})
	r.Join("draft:1", Participant{UserID: "u2"})

	// A full-state update replaces everything previously known about the
	// room, including entries the update omits.
	r.ReplaceAll("draft:1", []Participant{{UserID: "u3", Username: "carol"}})

	snap := r.Snapshot("draft:1")
	if len(snap) != 1 || snap[0].UserID != "u3" {
		t.Fatalf("snapshot = %v", snap)
	}
}

func TestUpdateCursor(t *testing.T) {
	r := NewRegistry()
	r.Join("draft:1", Participant{UserID: "u1"})

	r.UpdateCursor("draft:1", "u1", 0)
	snap := r.Snapshot("draft:1")
	if snap[0].Cursor == nil || *snap[0].Cursor != 0 {
		t.Fatalf("cursor = %v, want 0", snap[0].Cursor)
	}

	// Unknown user is a no-op, not a phantom participant.
	r.UpdateCursor("draft:1", "ghost", 3)
	if snap := r.Snapshot("draft:1"); len(snap) != 1 {
		t.Fatalf("snapshot = %v", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Join("draft:1", Participant{UserID: "u1", Username: "alice"})

	snap := r.Snapshot("draft:1")
	snap[0].Username = "mallory"

	if got := r.Snapshot("draft:1"); got[0].Username != "alice" {
		t.Fatalf("registry mutated through snapshot: %+v", got[0])
	}
}

func TestRoomsAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.Join("draft:1", Participant{UserID: "u1"})
	r.Join("draft:2", Participant{UserID: "u2"})

	if snap := r.Snapshot("draft:1"); len(snap) != 1 || snap[0].UserID != "u1" {
		t.Fatalf("draft:1 = %v", snap)
	}
	if snap := r.Snapshot("draft:2"); len(snap) != 1 || snap[0].UserID != "u2" {
		t.Fatalf("draft:2 = %v", snap)
	}
}
