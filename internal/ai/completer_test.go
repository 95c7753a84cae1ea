package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestFetchSkipsShortContext(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewCompleter(NewClient(server.URL, testToken))
	if err := c.Fetch(context.Background(), "short", nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if called {
		t.Fatal("backend called for sub-minimum context")
	}
	if c.Suggestion() != "" || c.Loading() {
		t.Fatalf("suggestion = %q, loading = %v", c.Suggestion(), c.Loading())
	}
}

func TestFetchAccumulatesAndDeduplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// The backend echoes the tail of the prompt before continuing.
		for _, chunk := range []string{"wor", "ld is great"} {
			fmt.Fprintf(w, "data: {\"type\":\"content\",\"content\":%q}\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	}))
	defer server.Close()

	c := NewCompleter(NewClient(server.URL, testToken))
	if err := c.Fetch(context.Background(), "Hello big wor", nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := c.Suggestion(); got != "ld is great" {
		t.Fatalf("suggestion = %q", got)
	}
	if c.Loading() {
		t.Fatal("still loading after done")
	}
}

func TestFetchDoneSuggestionWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"partial\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"done\",\"suggestion\":\"final suggestion\"}\n\n")
	}))
	defer server.Close()

	c := NewCompleter(NewClient(server.URL, testToken))
	if err := c.Fetch(context.Background(), "enough context here", nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := c.Suggestion(); got != "final suggestion" {
		t.Fatalf("suggestion = %q", got)
	}
}

func TestFetchSupersedesInFlight(t *testing.T) {
	release := make(chan struct{})
	firstArrived := make(chan struct{})
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		held := false
		once.Do(func() { held = true })
		if held {
			// Hold the first stream open until the test ends; the second
			// fetch must cancel it rather than wait.
			fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"stale\"}\n\n")
			w.(http.Flusher).Flush()
			close(firstArrived)
			<-release
			return
		}
		fmt.Fprint(w, "data: {\"type\":\"done\",\"suggestion\":\"fresh one\"}\n\n")
	}))
	defer server.Close()
	defer close(release)

	c := NewCompleter(NewClient(server.URL, testToken))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Fetch(context.Background(), "first prompt context", nil)
	}()

	// Wait until the first request reached the server, so the second
	// fetch is guaranteed to be the superseding one.
	select {
	case <-firstArrived:
	case <-time.After(2 * time.Second):
		t.Fatal("first fetch never started")
	}

	if err := c.Fetch(context.Background(), "second prompt context", nil); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := c.Suggestion(); got != "fresh one" {
		t.Fatalf("suggestion = %q", got)
	}

	select {
	case err := <-firstDone:
		// Superseded fetch ends quietly.
		if err != nil {
			t.Fatalf("first Fetch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first fetch did not unwind after cancellation")
	}

	if got := c.Suggestion(); got != "fresh one" {
		t.Fatalf("suggestion after unwind = %q", got)
	}
	if c.Loading() {
		t.Fatal("slot not released")
	}
}

func TestClearDiscardsSuggestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"done\",\"suggestion\":\"ghost text\"}\n\n")
	}))
	defer server.Close()

	c := NewCompleter(NewClient(server.URL, testToken))
	if err := c.Fetch(context.Background(), "plenty of context", nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	c.Clear()
	if got := c.Suggestion(); got != "" {
		t.Fatalf("suggestion = %q", got)
	}
}
