package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a draft or chat does not exist.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateDraft(ctx context.Context, ownerID, title, content string) (Draft, error) {
	const query = `
		INSERT INTO drafts (owner_id, title, content, status)
		VALUES ($1, $2, $3, 'draft')
		RETURNING id, owner_id, title, content, status, created_at, updated_at
	`
	var d Draft
	err := s.db.QueryRowContext(ctx, query, ownerID, title, content).
		Scan(&d.ID, &d.OwnerID, &d.Title, &d.Content, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, id int64) (Draft, error) {
	const query = `
		SELECT id, owner_id, title, content, status, created_at, updated_at
		FROM drafts WHERE id = $1
	`
	var d Draft
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.OwnerID, &d.Title, &d.Content, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("select draft: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDrafts(ctx context.Context, ownerID string, limit, offset int) ([]Draft, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `
		SELECT id, owner_id, title, content, status, created_at, updated_at
		FROM drafts WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]Draft, 0)
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Content, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (s *PostgresStore) UpdateDraft(ctx context.Context, id int64, update DraftUpdate) (Draft, error) {
	const query = `
		UPDATE drafts
		SET title = COALESCE($2, title),
		    content = COALESCE($3, content),
		    status = COALESCE($4, status),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, owner_id, title, content, status, created_at, updated_at
	`
	var d Draft
	err := s.db.QueryRowContext(ctx, query, id, update.Title, update.Content, update.Status).
		Scan(&d.ID, &d.OwnerID, &d.Title, &d.Content, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("update draft: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete draft result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveDraftContent writes back the live room content without touching
// title or status. Used by the hub when a room empties out.
func (s *PostgresStore) SaveDraftContent(ctx context.Context, id int64, content string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET content = $2, updated_at = NOW() WHERE id = $1`, id, content)
	if err != nil {
		return fmt.Errorf("save draft content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save draft content result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, ownerID, title string) (Chat, error) {
	const query = `
		INSERT INTO chats (owner_id, title)
		VALUES ($1, $2)
		RETURNING id, owner_id, title, created_at, updated_at
	`
	var c Chat
	err := s.db.QueryRowContext(ctx, query, ownerID, title).
		Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Chat{}, fmt.Errorf("insert chat: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetChat(ctx context.Context, id int64) (Chat, error) {
	const query = `SELECT id, owner_id, title, created_at, updated_at FROM chats WHERE id = $1`
	var c Chat
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("select chat: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListChats(ctx context.Context, ownerID string) ([]Chat, error) {
	const query = `
		SELECT id, owner_id, title, created_at, updated_at
		FROM chats WHERE owner_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *PostgresStore) DeleteChat(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, chatID int64, role, content string) (ChatMessage, error) {
	const query = `
		INSERT INTO chat_messages (chat_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, chat_id, role, content, created_at
	`
	var m ChatMessage
	err := s.db.QueryRowContext(ctx, query, chatID, role, content).
		Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, chatID); err != nil {
		return ChatMessage{}, fmt.Errorf("touch chat: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID int64) ([]ChatMessage, error) {
	const query = `
		SELECT id, chat_id, role, content, created_at
		FROM chat_messages WHERE chat_id = $1
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]ChatMessage, 0)
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
