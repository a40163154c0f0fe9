package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cimillas/walkin-queue/internal/app"
	"github.com/cimillas/walkin-queue/internal/clock"
	"github.com/cimillas/walkin-queue/internal/storage/memory"
	"github.com/rs/zerolog"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Called  *bool           `json:"called"`
	Code    string          `json:"code"`
}

func newTestRouter(t *testing.T, rateLimit int) http.Handler {
	t.Helper()
	clk := clock.NewStepping(time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC), time.Second)
	mgr, err := app.NewQueueManager(context.Background(), memory.NewStore(), clk)
	if err != nil {
		t.Fatalf("new queue manager: %v", err)
	}
	return NewRouter(RouterConfig{
		Queue:              mgr,
		Logger:             zerolog.Nop(),
		CORSOrigins:        []string{"http://localhost:5173"},
		RateLimitPerMinute: rateLimit,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, env
}

func decodeState(t *testing.T, raw json.RawMessage) queueStateResponse {
	t.Helper()
	var s queueStateResponse
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return s
}

func TestRouter_QueueScenario(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec, env := do(t, h, http.MethodPost, "/api/queue/ticket", `{"name":"Ana"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ana ticketResponse
	if err := json.Unmarshal(env.Data, &ana); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if ana.Number != 1 || ana.Status != "waiting" || ana.ID == "" {
		t.Fatalf("unexpected ticket %+v", ana)
	}

	if rec, _ := do(t, h, http.MethodPost, "/api/queue/ticket", `{"name":"Luis"}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	_, env = do(t, h, http.MethodPost, "/api/queue/next", "")
	state := decodeState(t, env.Data)
	if env.Called == nil || !*env.Called || state.CurrentlyServing == nil || state.CurrentlyServing.Number != 1 {
		t.Fatalf("expected #1 called, got called=%v state=%+v", env.Called, state)
	}

	_, env = do(t, h, http.MethodPost, "/api/queue/next", "")
	state = decodeState(t, env.Data)
	if state.Tickets[0].Status != "served" || state.CurrentlyServing.Number != 2 {
		t.Fatalf("expected #1 served and #2 serving, got %+v", state)
	}

	_, env = do(t, h, http.MethodPost, "/api/queue/next", "")
	if env.Called == nil || *env.Called {
		t.Fatalf("expected called=false with nobody waiting")
	}

	_, env = do(t, h, http.MethodGet, "/api/queue/state", "")
	state = decodeState(t, env.Data)
	if len(state.Tickets) != 2 || state.NextNumber != 3 {
		t.Fatalf("unexpected state %+v", state)
	}

	_, env = do(t, h, http.MethodPost, "/api/queue/reset", "")
	state = decodeState(t, env.Data)
	if len(state.Tickets) != 0 || state.CurrentlyServing != nil || state.NextNumber != 1 {
		t.Fatalf("expected empty queue after reset, got %+v", state)
	}

	_, env = do(t, h, http.MethodPost, "/api/queue/ticket", `{"name":"Eva"}`)
	var eva ticketResponse
	if err := json.Unmarshal(env.Data, &eva); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if eva.Number != 1 {
		t.Fatalf("expected numbering to restart at 1, got %d", eva.Number)
	}
}

func TestRouter_ValidationLeavesQueueUntouched(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec, env := do(t, h, http.MethodPost, "/api/queue/ticket", `{"name":" "}`)
	if rec.Code != http.StatusBadRequest || env.Code != "name_required" || env.Success {
		t.Fatalf("expected name_required, got %d %+v", rec.Code, env)
	}

	_, env = do(t, h, http.MethodGet, "/api/queue/state", "")
	if state := decodeState(t, env.Data); len(state.Tickets) != 0 || state.NextNumber != 1 {
		t.Fatalf("expected untouched queue, got %+v", state)
	}
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec, env := do(t, h, http.MethodGet, "/missing", "")
	if rec.Code != http.StatusNotFound || env.Code != codeNotFound {
		t.Fatalf("expected JSON 404, got %d %+v", rec.Code, env)
	}

	rec, env = do(t, h, http.MethodGet, "/api/queue/next", "")
	if rec.Code != http.StatusMethodNotAllowed || env.Code != codeMethodNotAllowed {
		t.Fatalf("expected JSON 405, got %d %+v", rec.Code, env)
	}
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	rec, _ := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 0)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/queue/ticket", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if got := preflight("http://localhost:5173").Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
	if got := preflight("http://evil.local").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin for unknown origin, got %q", got)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, h, http.MethodGet, "/api/queue/state", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec, env := do(t, h, http.MethodGet, "/api/queue/state", "")
	if rec.Code != http.StatusTooManyRequests || env.Code != codeRateLimited {
		t.Fatalf("expected JSON 429, got %d %+v", rec.Code, env)
	}
}
