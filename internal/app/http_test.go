package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"draftroom/internal/auth"
	"draftroom/internal/config"
)

const testSecret = "test-secret"

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Config{TokenSecret: testSecret, CORSOrigin: "http://localhost:5173"}
	service := New(cfg, nil, nil, nil, nil)
	return NewHTTPServer(service, cfg.CORSOrigin).Handler()
}

func mintToken(t *testing.T, sub, name string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub:  sub,
		Name: name,
		JTI:  "test",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestOptionsPreflight(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/drafts", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	handler := testHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("no request id assigned")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Fatalf("request id = %q", got)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drafts", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Fatalf("body = %v", body)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub: "u1", Name: "alice", JTI: "test",
		Exp: time.Now().Add(-time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	handler := testHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1", "alice"))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1", "alice"))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestInvalidDraftID(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drafts/not-a-number", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1", "alice"))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSessionFromToken(t *testing.T) {
	cfg := config.Config{TokenSecret: testSecret}
	service := New(cfg, nil, nil, nil, nil)

	session, err := service.SessionFromToken(mintToken(t, "u7", "carol"))
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	if session.UserID != "u7" || session.UserName != "carol" {
		t.Fatalf("session = %+v", session)
	}

	if _, err := service.SessionFromToken("garbage"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestDomainErrorMapping(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, notFound("Draft not found"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	writeServiceError(rec, forbidden("Not your draft"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	writeServiceError(rec, badRequest("Bad status value"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSplitPath(t *testing.T) {
	if got := splitPath("/api/drafts/7/history"); len(got) != 4 || got[3] != "history" {
		t.Fatalf("got %v", got)
	}
	if got := splitPath("/"); got != nil {
		t.Fatalf("got %v", got)
	}
}
