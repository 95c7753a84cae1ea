// Package ai talks to the generation backend. The backend is an external
// collaborator consumed as an opaque stream of events; this package owns
// the two streaming endpoints (chat and inline completion) and the
// single-slot completion runner.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"draftroom/internal/reconcile"
	"draftroom/internal/stream"
)

// Event types emitted by the backend. Chat streams use all of them; inline
// completion streams only use content and done.
const (
	EventStatus    = "status"
	EventContent   = "content"
	EventEdits     = "edits"
	EventCitations = "citations"
	EventDone      = "done"
	EventError     = "error"
)

// Citation points at the retrieved document chunk behind part of a reply.
type Citation struct {
	Index      int    `json:"index"`
	DocumentID int64  `json:"document_id"`
	ChunkText  string `json:"chunk_text"`
}

// Event is one decoded frame from a generation stream. A Type of
// EventError is an in-band backend failure, not a transport error; it is
// rendered to the user rather than propagated as a Go error.
type Event struct {
	Type       string           `json:"type"`
	Content    string           `json:"content,omitempty"`
	Suggestion string           `json:"suggestion,omitempty"`
	Edits      []reconcile.Edit `json:"edits,omitempty"`
	Citations  []Citation       `json:"citations,omitempty"`
	HasEdits   bool             `json:"has_edits,omitempty"`
	ChatID     *int64           `json:"chat_id,omitempty"`
	Mode       string           `json:"mode,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// Selection mirrors the editor's selection on the wire.
type Selection struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Message      string     `json:"message"`
	ChatID       *int64     `json:"chat_id,omitempty"`
	PersonaID    *string    `json:"persona_id,omitempty"`
	DocumentIDs  []int64    `json:"document_ids,omitempty"`
	DraftContent string     `json:"draft_content,omitempty"`
	Selection    *Selection `json:"selection,omitempty"`
}

// CompleteRequest is the body of an inline-completion call.
type CompleteRequest struct {
	Context   string  `json:"context"`
	PersonaID *string `json:"persona_id,omitempty"`
}

// TokenSource supplies the bearer credential for each request. The
// credential is opaque here; it comes from the external auth collaborator.
type TokenSource func() string

type Client struct {
	baseURL string
	token   TokenSource
	http    *http.Client
}

func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		// Streams stay open for the life of a generation; no client-side
		// deadline beyond the caller's context.
		http: &http.Client{Timeout: 0},
	}
}

// Stream yields the events of one in-flight generation. Close aborts the
// underlying transport; an abandoned stream stops being consumed and its
// body is closed, with no partial-result commit.
type Stream struct {
	body io.ReadCloser
	dec  *stream.Decoder
}

// Next returns the next decoded event, or io.EOF once the transport ends.
// Frames whose payload does not decode as an event are dropped. Callers
// must treat EOF without a prior done event as an incomplete response.
func (s *Stream) Next() (Event, error) {
	for {
		payload, err := s.dec.Next()
		if err != nil {
			return Event{}, err
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			continue
		}
		return ev, nil
	}
}

func (s *Stream) Close() error {
	return s.body.Close()
}

// Chat starts a streaming chat generation.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Stream, error) {
	return c.open(ctx, "/chat", req)
}

// Complete starts a streaming inline completion.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) (*Stream, error) {
	return c.open(ctx, "/autocomplete", req)
}

func (c *Client) open(ctx context.Context, path string, body any) (*Stream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("call %s: status %d", path, resp.StatusCode)
	}
	return &Stream{body: resp.Body, dec: stream.NewDecoder(resp.Body)}, nil
}
