// Package app wires the draftroom services behind the HTTP surface:
// draft and chat persistence, search, revision history, and the room hub.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"draftroom/internal/auth"
	"draftroom/internal/config"
	"draftroom/internal/history"
	"draftroom/internal/hub"
	"draftroom/internal/search"
	"draftroom/internal/store"
)

// Session identifies the authenticated caller of one request.
type Session struct {
	UserID   string
	UserName string
}

type Service struct {
	cfg     config.Config
	store   *store.PostgresStore
	search  *search.Service
	history *history.Service
	hub     *hub.Hub
	secret  []byte
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, historyService *history.Service, roomHub *hub.Hub) *Service {
	return &Service{
		cfg:     cfg,
		store:   dataStore,
		search:  searchService,
		history: historyService,
		hub:     roomHub,
		secret:  []byte(cfg.TokenSecret),
	}
}

// Bootstrap runs startup work that may touch external services.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.search.ReindexAllFromPG(ctx)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Hub() *hub.Hub {
	return s.hub
}

// SessionFromToken verifies the bearer credential. The credential itself
// is minted by the external identity service; only signature and expiry
// are checked here.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.Sub, UserName: claims.Name}, nil
}

func (s *Service) CreateDraft(ctx context.Context, session Session, title, content string) (store.Draft, error) {
	if title == "" {
		title = "Untitled"
	}
	draft, err := s.store.CreateDraft(ctx, session.UserID, title, content)
	if err != nil {
		return store.Draft{}, fmt.Errorf("create draft: %w", err)
	}
	s.indexDraft(draft)
	if _, err := s.history.Commit(draft.ID, draft.Content, session.UserName, "Create draft"); err != nil {
		log.Printf("app: history commit for draft %d: %v", draft.ID, err)
	}
	return draft, nil
}

// GetDraft is open to any authenticated user: a draft whose room you can
// join is a draft you can read.
func (s *Service) GetDraft(ctx context.Context, id int64) (store.Draft, error) {
	draft, err := s.store.GetDraft(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Draft{}, notFound("Draft not found")
	}
	if err != nil {
		return store.Draft{}, err
	}
	return draft, nil
}

func (s *Service) ListDrafts(ctx context.Context, session Session, limit, offset int) ([]store.Draft, error) {
	return s.store.ListDrafts(ctx, session.UserID, limit, offset)
}

func (s *Service) UpdateDraft(ctx context.Context, session Session, id int64, update store.DraftUpdate) (store.Draft, error) {
	if update.Status != nil {
		switch *update.Status {
		case store.StatusDraft, store.StatusPublished, store.StatusArchived:
		default:
			return store.Draft{}, badRequest("Unknown draft status")
		}
	}
	if err := s.requireOwner(ctx, session, id); err != nil {
		return store.Draft{}, err
	}
	draft, err := s.store.UpdateDraft(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return store.Draft{}, notFound("Draft not found")
	}
	if err != nil {
		return store.Draft{}, err
	}
	s.indexDraft(draft)
	if update.Content != nil || update.Title != nil {
		if _, err := s.history.Commit(draft.ID, draft.Content, session.UserName, "Update draft"); err != nil {
			log.Printf("app: history commit for draft %d: %v", draft.ID, err)
		}
	}
	return draft, nil
}

func (s *Service) DeleteDraft(ctx context.Context, session Session, id int64) error {
	if err := s.requireOwner(ctx, session, id); err != nil {
		return err
	}
	if err := s.store.DeleteDraft(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Draft not found")
		}
		return err
	}
	s.search.DeleteDraft(id)
	return nil
}

func (s *Service) SearchDrafts(session Session, text string, limit, offset int) search.Response {
	return s.search.Search(search.Query{
		Text:    text,
		OwnerID: session.UserID,
		Limit:   limit,
		Offset:  offset,
	})
}

func (s *Service) DraftHistory(ctx context.Context, id int64, limit int) ([]history.Revision, error) {
	if _, err := s.GetDraft(ctx, id); err != nil {
		return nil, err
	}
	return s.history.History(id, limit)
}

func (s *Service) DraftRevision(ctx context.Context, id int64, hash string) (string, error) {
	if _, err := s.GetDraft(ctx, id); err != nil {
		return "", err
	}
	content, err := s.history.ContentAt(id, hash)
	if err != nil {
		return "", notFound("Revision not found")
	}
	return content, nil
}

func (s *Service) CreateChat(ctx context.Context, session Session, title string) (store.Chat, error) {
	return s.store.CreateChat(ctx, session.UserID, title)
}

func (s *Service) ListChats(ctx context.Context, session Session) ([]store.Chat, error) {
	return s.store.ListChats(ctx, session.UserID)
}

func (s *Service) ChatMessages(ctx context.Context, session Session, chatID int64) (store.Chat, []store.ChatMessage, error) {
	chat, err := s.requireChat(ctx, session, chatID)
	if err != nil {
		return store.Chat{}, nil, err
	}
	messages, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return store.Chat{}, nil, err
	}
	return chat, messages, nil
}

func (s *Service) AppendChatMessage(ctx context.Context, session Session, chatID int64, role, content string) (store.ChatMessage, error) {
	if role != "user" && role != "assistant" {
		return store.ChatMessage{}, badRequest("Role must be user or assistant")
	}
	if _, err := s.requireChat(ctx, session, chatID); err != nil {
		return store.ChatMessage{}, err
	}
	return s.store.AppendMessage(ctx, chatID, role, content)
}

func (s *Service) DeleteChat(ctx context.Context, session Session, chatID int64) error {
	if _, err := s.requireChat(ctx, session, chatID); err != nil {
		return err
	}
	return s.store.DeleteChat(ctx, chatID)
}

func (s *Service) requireOwner(ctx context.Context, session Session, draftID int64) error {
	draft, err := s.store.GetDraft(ctx, draftID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Draft not found")
	}
	if err != nil {
		return err
	}
	if draft.OwnerID != session.UserID {
		return forbidden("Not your draft")
	}
	return nil
}

func (s *Service) requireChat(ctx context.Context, session Session, chatID int64) (store.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Chat{}, notFound("Chat not found")
	}
	if err != nil {
		return store.Chat{}, err
	}
	if chat.OwnerID != session.UserID {
		return store.Chat{}, forbidden("Not your chat")
	}
	return chat, nil
}

func (s *Service) indexDraft(draft store.Draft) {
	s.search.IndexDraft(search.DraftRecord{
		ID:      draft.ID,
		OwnerID: draft.OwnerID,
		Title:   draft.Title,
		Content: draft.Content,
		Status:  draft.Status,
	})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid identifier")
	}
	return id, nil
}
