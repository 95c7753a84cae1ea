// Package editor holds the canonical state for one open draft. Everything
// that can mutate the text buffer (keystrokes, remote collaborator
// updates, accepted AI edits) goes through one Store whose methods are
// serialized, so the buffer never sees a concurrent read-modify-write.
package editor

import (
	"sync"
	"time"

	"draftroom/internal/presence"
	"draftroom/internal/reconcile"
)

// Selection is the user's current text selection, if any.
type Selection struct {
	Start int
	End   int
	Text  string
}

// State is an immutable snapshot of the store.
type State struct {
	Content      string
	Title        string
	Selection    *Selection
	PendingEdits []reconcile.Edit
	Presence     []presence.Participant
	Saving       bool
	LastSaved    time.Time
}

// Store is the single writer for a draft's canonical content. The zero
// title matches a fresh, unsaved draft.
type Store struct {
	mu    sync.Mutex
	state State
}

func NewStore() *Store {
	return &Store{state: State{Title: "Untitled"}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

// Content returns the canonical text buffer.
func (s *Store) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Content
}

// SetContent overwrites the canonical buffer. Local keystrokes and remote
// content updates both land here; whichever arrives last wins.
func (s *Store) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Content = content
}

func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Title = title
}

func (s *Store) SetSelection(sel *Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel == nil {
		s.state.Selection = nil
		return
	}
	copied := *sel
	s.state.Selection = &copied
}

// SetPendingEdits replaces the queue of not-yet-accepted AI edits.
func (s *Store) SetPendingEdits(edits []reconcile.Edit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PendingEdits = copyEdits(edits)
}

// ApplyEdit accepts the pending edit at index, reconciling it against the
// current content and shifting the hints of the edits that remain.
func (s *Store) ApplyEdit(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, remaining := reconcile.ApplyOne(s.state.Content, s.state.PendingEdits, index)
	s.state.Content = content
	s.state.PendingEdits = remaining
}

// ApplyAllEdits accepts every pending edit in one batch and clears the
// queue.
func (s *Store) ApplyAllEdits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Content = reconcile.ApplyAll(s.state.Content, s.state.PendingEdits)
	s.state.PendingEdits = nil
}

// ClearEdits rejects all pending edits.
func (s *Store) ClearEdits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PendingEdits = nil
}

// SetPresence replaces the participant view wholesale.
func (s *Store) SetPresence(participants []presence.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Presence = copyParticipants(participants)
}

// UpdateUserCursor moves one participant's cursor; no-op if absent.
func (s *Store) UpdateUserCursor(userID string, position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Presence {
		if s.state.Presence[i].UserID == userID {
			pos := position
			s.state.Presence[i].Cursor = &pos
			return
		}
	}
}

func (s *Store) SetSaving(saving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Saving = saving
}

func (s *Store) SetLastSaved(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastSaved = at
}

func (s *Store) copyState() State {
	state := s.state
	state.PendingEdits = copyEdits(s.state.PendingEdits)
	state.Presence = copyParticipants(s.state.Presence)
	if s.state.Selection != nil {
		sel := *s.state.Selection
		state.Selection = &sel
	}
	return state
}

func copyEdits(edits []reconcile.Edit) []reconcile.Edit {
	if edits == nil {
		return nil
	}
	out := make([]reconcile.Edit, len(edits))
	copy(out, edits)
	return out
}

func copyParticipants(participants []presence.Participant) []presence.Participant {
	if participants == nil {
		return nil
	}
	out := make([]presence.Participant, len(participants))
	copy(out, participants)
	return out
}
