// Package presence tracks which participants are connected to each draft
// room and where their cursors are.
package presence

import "sync"

// Participant is one connected user in a room.
type Participant struct {
	UserID   string
	Username string
	Color    string
	Cursor   *int
}

// Registry holds the participant set for every room. State for a room
// always reflects the most recent snapshot received; partial updates from
// different sources are never merged.
type Registry struct {
	mu    sync.Mutex
	rooms map[string][]Participant
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string][]Participant)}
}

// Join adds p to the room, replacing any existing entry with the same
// UserID, and returns the resulting room snapshot.
func (r *Registry) Join(room string, p Participant) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := r.rooms[room]
	replaced := false
	for i := range participants {
		if participants[i].UserID == p.UserID {
			participants[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		participants = append(participants, p)
	}
	r.rooms[room] = participants
	return snapshot(participants)
}

// Leave removes the user from the room and returns the resulting snapshot.
func (r *Registry) Leave(room, userID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := r.rooms[room]
	kept := participants[:0]
	for _, p := range participants {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(r.rooms, room)
		return []Participant{}
	}
	r.rooms[room] = kept
	return snapshot(kept)
}

// ReplaceAll swaps the room's participant set wholesale. Used when a
// room_state or join/leave message carries the full user list: replacement
// beats incremental merging for correctness at the cost of bandwidth.
func (r *Registry) ReplaceAll(room string, participants []Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room] = snapshot(participants)
}

// UpdateCursor moves one participant's cursor. No-op if the user is not in
// the room.
func (r *Registry) UpdateCursor(room, userID string, position int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := r.rooms[room]
	for i := range participants {
		if participants[i].UserID == userID {
			pos := position
			participants[i].Cursor = &pos
			return
		}
	}
}

// Snapshot returns a copy of the room's participants.
func (r *Registry) Snapshot(room string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot(r.rooms[room])
}

func snapshot(participants []Participant) []Participant {
	out := make([]Participant, len(participants))
	copy(out, participants)
	return out
}
