package search

import (
	"encoding/json"
	"strings"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func rawHit(t *testing.T, fields map[string]any) meili.Hit {
	t.Helper()
	hit := make(meili.Hit, len(fields))
	for key, value := range fields {
		data, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal %s: %v", key, err)
		}
		hit[key] = json.RawMessage(data)
	}
	return hit
}

func TestHitToResultPrefersHighlights(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":      7,
		"title":   "Plain title",
		"content": "plain content",
		"status":  "draft",
		"_formatted": map[string]string{
			"title":   "Plain <mark>title</mark>",
			"content": "plain <mark>content</mark>",
		},
	})

	r := hitToResult(hit)
	if r.ID != 7 || r.Status != "draft" {
		t.Fatalf("result = %+v", r)
	}
	if r.Title != "Plain <mark>title</mark>" {
		t.Fatalf("title = %q", r.Title)
	}
	if r.Snippet != "plain <mark>content</mark>" {
		t.Fatalf("snippet = %q", r.Snippet)
	}
}

func TestHitToResultFallsBackToPlainFields(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":      "42",
		"title":   "No highlights",
		"content": "body text",
		"status":  "published",
	})

	r := hitToResult(hit)
	if r.ID != 42 {
		t.Fatalf("id = %d", r.ID)
	}
	if r.Title != "No highlights" || r.Snippet != "body text" {
		t.Fatalf("result = %+v", r)
	}
}

func TestSnippetOfTruncatesOnRunes(t *testing.T) {
	long := strings.Repeat("ä", 200)
	got := snippetOf(long)
	if len([]rune(got)) != 160 {
		t.Fatalf("snippet length = %d runes", len([]rune(got)))
	}

	short := "fits entirely"
	if snippetOf(short) != short {
		t.Fatalf("short snippet = %q", snippetOf(short))
	}
}

func TestServiceFallsBackWhenMeiliAbsent(t *testing.T) {
	// With no Meilisearch configured and a blank query, the facade
	// returns an empty but well-formed response rather than erroring.
	s := NewService(nil, NewPgFTS(nil))
	resp := s.Search(Query{Text: "   ", OwnerID: "u1"})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("response = %+v", resp)
	}
}
