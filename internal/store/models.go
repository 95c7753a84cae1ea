package store

import "time"

// Draft statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Draft is one document as persisted. Content is the canonical text
// buffer; while a room is open the live copy lives in the hub and is
// flushed back here.
type Draft struct {
	ID        int64
	OwnerID   string
	Title     string
	Content   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DraftUpdate is a partial update; nil fields are left untouched.
type DraftUpdate struct {
	Title   *string
	Content *string
	Status  *string
}

// Chat is one conversation with the generation backend.
type Chat struct {
	ID        int64
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one turn of a chat; Role is "user" or "assistant".
type ChatMessage struct {
	ID        int64
	ChatID    int64
	Role      string
	Content   string
	CreatedAt time.Time
}
