package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"draftroom/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	upgrader   websocket.Upgrader
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser origin checks belong to the deployment proxy; the
			// credential on the query string is what gates entry.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
		return
	}

	// The sync channel carries its credential in the query string since
	// browsers cannot set headers on a websocket handshake.
	if r.Method == http.MethodGet && len(parts) == 5 && parts[1] == "collab" && parts[2] == "ws" && parts[3] == "draft" {
		s.handleCollabWS(w, r, parts[4])
		return
	}

	session, err := s.service.SessionFromToken(bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired credential", nil)
		return
	}

	switch {
	case parts[1] == "drafts" && len(parts) == 2:
		switch r.Method {
		case http.MethodGet:
			s.handleListDrafts(w, r, session)
		case http.MethodPost:
			s.handleCreateDraft(w, r, session)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case parts[1] == "drafts" && len(parts) == 3:
		s.handleDraftByID(w, r, session, parts[2])
		return

	case parts[1] == "drafts" && len(parts) == 4 && parts[3] == "history" && r.Method == http.MethodGet:
		s.handleDraftHistory(w, r, parts[2])
		return

	case parts[1] == "drafts" && len(parts) == 5 && parts[3] == "history" && r.Method == http.MethodGet:
		s.handleDraftRevision(w, r, parts[2], parts[4])
		return

	case parts[1] == "search" && len(parts) == 2 && r.Method == http.MethodGet:
		s.handleSearch(w, r, session)
		return

	case parts[1] == "chats" && len(parts) == 2:
		switch r.Method {
		case http.MethodGet:
			s.handleListChats(w, r, session)
		case http.MethodPost:
			s.handleCreateChat(w, r, session)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case parts[1] == "chats" && len(parts) == 3 && r.Method == http.MethodDelete:
		s.handleDeleteChat(w, r, session, parts[2])
		return

	case parts[1] == "chats" && len(parts) == 4 && parts[3] == "messages" && r.Method == http.MethodPost:
		s.handleAppendChatMessage(w, r, session, parts[2])
		return

	case parts[1] == "chat" && len(parts) == 3 && r.Method == http.MethodGet:
		s.handleGetChat(w, r, session, parts[2])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
}

func (s *HTTPServer) handleCollabWS(w http.ResponseWriter, r *http.Request, rawID string) {
	draftID, err := parseID(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid draft id", nil)
		return
	}
	session, err := s.service.SessionFromToken(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired credential", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		log.Printf("app: ws upgrade draft %d: %v", draftID, err)
		return
	}
	s.service.Hub().Serve(r.Context(), draftID, session.UserID, session.UserName, conn)
}

func (s *HTTPServer) handleListDrafts(w http.ResponseWriter, r *http.Request, session Session) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	drafts, err := s.service.ListDrafts(r.Context(), session, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": draftsJSON(drafts)})
}

func (s *HTTPServer) handleCreateDraft(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	draft, err := s.service.CreateDraft(r.Context(), session, body.Title, body.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draftJSON(draft))
}

func (s *HTTPServer) handleDraftByID(w http.ResponseWriter, r *http.Request, session Session, rawID string) {
	draftID, err := parseID(rawID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		draft, err := s.service.GetDraft(r.Context(), draftID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draftJSON(draft))
	case http.MethodPut:
		var body struct {
			Title   *string `json:"title"`
			Content *string `json:"content"`
			Status  *string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		draft, err := s.service.UpdateDraft(r.Context(), session, draftID, store.DraftUpdate{
			Title:   body.Title,
			Content: body.Content,
			Status:  body.Status,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draftJSON(draft))
	case http.MethodDelete:
		if err := s.service.DeleteDraft(r.Context(), session, draftID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleDraftHistory(w http.ResponseWriter, r *http.Request, rawID string) {
	draftID, err := parseID(rawID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	revisions, err := s.service.DraftHistory(r.Context(), draftID, queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
}

func (s *HTTPServer) handleDraftRevision(w http.ResponseWriter, r *http.Request, rawID, hash string) {
	draftID, err := parseID(rawID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	content, err := s.service.DraftRevision(r.Context(), draftID, hash)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hash": hash, "content": content})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing query", nil)
		return
	}
	response := s.service.SearchDrafts(session, query, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleListChats(w http.ResponseWriter, r *http.Request, session Session) {
	chats, err := s.service.ListChats(r.Context(), session)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chatsJSON(chats)})
}

func (s *HTTPServer) handleCreateChat(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	chat, err := s.service.CreateChat(r.Context(), session, body.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chatJSON(chat))
}

func (s *HTTPServer) handleGetChat(w http.ResponseWriter, r *http.Request, session Session, rawID string) {
	chatID, err := parseID(rawID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	chat, messages, err := s.service.ChatMessages(r.Context(), session, chatID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	messagesJSON := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		messagesJSON = append(messagesJSON, map[string]any{
			"id":      m.ID,
			"role":    m.Role,
			"content": m.Content,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat":     chatJSON(chat),
		"messages": messagesJSON,
	})
}

func (s *HTTPServer) handleAppendChatMessage(w http.ResponseWriter, r *http.Request, session Session, rawID string) {
	chatID, err := parseID(rawID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var body struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	message, err := s.service.AppendChatMessage(r.Context(), session, chatID, body.Role, body.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      message.ID,
		"role":    message.Role,
		"content": message.Content,
	})
}

func (s *HTTPServer) handleDeleteChat(w http.ResponseWriter, r *http.Request, session Session, rawID string) {
	chatID, err := parseID(rawID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.service.DeleteChat(r.Context(), session, chatID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func draftJSON(d store.Draft) map[string]any {
	return map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"content":    d.Content,
		"status":     d.Status,
		"created_at": d.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func draftsJSON(drafts []store.Draft) []map[string]any {
	out := make([]map[string]any, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, draftJSON(d))
	}
	return out
}

func chatJSON(c store.Chat) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"title":      c.Title,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func chatsJSON(chats []store.Chat) []map[string]any {
	out := make([]map[string]any, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatJSON(c))
	}
	return out
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		// Websocket handshakes must not go through the status recorder:
		// the upgrader needs the raw http.Hijacker.
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}
	log.Printf("app: internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal error", nil)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
