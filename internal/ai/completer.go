package ai

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"unicode/utf8"

	"draftroom/internal/dedupe"
)

// minContextRunes is the shortest prompt context worth completing.
const minContextRunes = 10

// Completer is the single in-flight slot for inline completions. Starting
// a fetch cancels whatever generation is still running; the accumulated
// suggestion is deduplicated against the prompt context on every chunk so
// ghost text never flashes an echoed fragment.
type Completer struct {
	client *Client

	mu         sync.Mutex
	cancel     context.CancelFunc
	generation uint64
	suggestion string
	loading    bool
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

// Suggestion returns the current deduplicated ghost text.
func (c *Completer) Suggestion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suggestion
}

// Loading reports whether a completion is in flight.
func (c *Completer) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Clear discards the current suggestion.
func (c *Completer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suggestion = ""
}

// Fetch streams a completion for the text leading up to the cursor and
// blocks until the stream finishes or is superseded. Cancellation of a
// superseded fetch is cooperative and deliberate, not a failure, so it is
// never logged as one.
func (c *Completer) Fetch(ctx context.Context, promptContext string, personaID *string) error {
	if utf8.RuneCountInString(promptContext) < minContextRunes {
		return nil
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.generation++
	gen := c.generation
	c.loading = true
	c.suggestion = ""
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		// A newer fetch may already own the slot; only release it if this
		// one still does.
		if c.generation == gen {
			c.cancel = nil
			c.loading = false
		}
		c.mu.Unlock()
	}()

	s, err := c.client.Complete(fetchCtx, CompleteRequest{Context: promptContext, PersonaID: personaID})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer s.Close()

	accumulated := ""
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || fetchCtx.Err() != nil {
				return nil
			}
			log.Printf("ai: completion stream error: %v", err)
			return err
		}

		switch ev.Type {
		case EventContent:
			accumulated += ev.Content
			c.setSuggestion(gen, dedupe.StripContext(accumulated, promptContext))
		case EventDone:
			if ev.Suggestion != "" {
				c.setSuggestion(gen, dedupe.StripContext(ev.Suggestion, promptContext))
			}
			return nil
		}
	}
}

// setSuggestion ignores writes from a superseded fetch.
func (c *Completer) setSuggestion(gen uint64, s string) {
	c.mu.Lock()
	if c.generation == gen {
		c.suggestion = s
	}
	c.mu.Unlock()
}
