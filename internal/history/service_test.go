package history

import (
	"testing"
)

func TestCommitAndHistory(t *testing.T) {
	s := New(t.TempDir())

	first, err := s.Commit(1, "version one", "alice", "Create draft")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if first.Hash == "" || first.Author != "alice" {
		t.Fatalf("revision = %+v", first)
	}

	second, err := s.Commit(1, "version two", "bob", "Update draft")
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}

	revisions, err := s.History(1, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("revisions = %v", revisions)
	}
	// Newest first.
	if revisions[0].Hash != second.Hash || revisions[1].Hash != first.Hash {
		t.Fatalf("order = %v", revisions)
	}
	if revisions[0].Author != "bob" || revisions[0].Message != "Update draft" {
		t.Fatalf("head = %+v", revisions[0])
	}
}

func TestContentAtRevision(t *testing.T) {
	s := New(t.TempDir())

	first, err := s.Commit(1, "the original wording", "alice", "Create draft")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Commit(1, "rewritten entirely", "alice", "Update draft"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	content, err := s.ContentAt(1, first.Hash)
	if err != nil {
		t.Fatalf("ContentAt: %v", err)
	}
	if content != "the original wording" {
		t.Fatalf("content = %q", content)
	}
}

func TestUnchangedContentReturnsHeadRevision(t *testing.T) {
	s := New(t.TempDir())

	first, err := s.Commit(1, "same text", "alice", "Create draft")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Saving identical content must not fail and must not grow the log.
	again, err := s.Commit(1, "same text", "alice", "Update draft")
	if err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("hash = %q, want %q", again.Hash, first.Hash)
	}

	revisions, err := s.History(1, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("revisions = %v", revisions)
	}
}

func TestHistoryForUnknownDraftIsEmpty(t *testing.T) {
	s := New(t.TempDir())

	revisions, err := s.History(99, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(revisions) != 0 {
		t.Fatalf("revisions = %v", revisions)
	}
}

func TestHistoryLimit(t *testing.T) {
	s := New(t.TempDir())
	contents := []string{"one", "two", "three"}
	for _, c := range contents {
		if _, err := s.Commit(1, c, "alice", "Update draft"); err != nil {
			t.Fatalf("commit %q: %v", c, err)
		}
	}

	revisions, err := s.History(1, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("revisions = %v", revisions)
	}
}

func TestDraftsAreIsolated(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Commit(1, "draft one", "alice", "Create draft"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Commit(2, "draft two", "bob", "Create draft"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	one, err := s.History(1, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	two, err := s.History(2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(one) != 1 || len(two) != 1 {
		t.Fatalf("histories = %v / %v", one, two)
	}
	if one[0].Author != "alice" || two[0].Author != "bob" {
		t.Fatalf("authors = %q / %q", one[0].Author, two[0].Author)
	}
}
