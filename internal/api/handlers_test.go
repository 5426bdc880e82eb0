package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/duetloop/duetloop/internal/dialogue"
	"github.com/duetloop/duetloop/internal/feed"
	"github.com/duetloop/duetloop/internal/models"
)

// cannedGenerator returns numbered lines without ever failing.
type cannedGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *cannedGenerator) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return fmt.Sprintf("line %d", g.calls), nil
}

func newTestAPIServer(t *testing.T) *Server {
	t.Helper()
	source, err := feed.NewSource(feed.WithStaticItems(models.ContextItem{
		URL:    "https://example.com/post/1",
		Author: "alice",
		Title:  "test post",
		Score:  10,
	}))
	if err != nil {
		t.Fatalf("failed to create static source: %v", err)
	}
	sched := dialogue.NewTurnScheduler(&cannedGenerator{}, source, dialogue.Config{})
	return NewServer(sched)
}

func doRequest(handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// pollUntilTurn polls the next endpoint until a turn arrives or the deadline expires.
func pollUntilTurn(t *testing.T, handler http.Handler) models.Turn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rr := doRequest(handler, http.MethodGet, "/conversation/next", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("poll returned status %d: %s", rr.Code, rr.Body.String())
		}
		var waiting models.WaitingResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &waiting); err == nil && waiting.Waiting {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		var turn models.Turn
		if err := json.Unmarshal(rr.Body.Bytes(), &turn); err != nil {
			t.Fatalf("failed to decode turn: %v (%s)", err, rr.Body.String())
		}
		return turn
	}
	t.Fatal("no turn delivered before deadline")
	return models.Turn{}
}

func TestNextBeforeStartReturnsConflict(t *testing.T) {
	srv := newTestAPIServer(t)
	handler := srv.Handler()

	rr := doRequest(handler, http.MethodGet, "/conversation/next", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(models.APIStatusError) {
		t.Errorf("expected error status, got %q", resp.Status)
	}
}

func TestStartNextAckStopFlow(t *testing.T) {
	srv := newTestAPIServer(t)
	handler := srv.Handler()

	rr := doRequest(handler, http.MethodPost, "/conversation/start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("start returned status %d", rr.Code)
	}
	var startResp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &startResp); err != nil {
		t.Fatalf("failed to decode start response: %v", err)
	}
	if startResp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status on start, got %q", startResp.Status)
	}

	turn := pollUntilTurn(t, handler)
	if turn.TurnNumber != 1 {
		t.Errorf("expected turn number 1, got %d", turn.TurnNumber)
	}
	if turn.Speaker != models.SpeakerA {
		t.Errorf("expected speaker A to open, got %q", turn.Speaker)
	}
	if turn.NewContext == nil {
		t.Error("expected the opening turn to surface the feed item")
	}

	ackBody, _ := json.Marshal(models.AckRequest{TurnNumber: turn.TurnNumber})
	rr = doRequest(handler, http.MethodPost, "/conversation/ack", ackBody)
	if rr.Code != http.StatusOK {
		t.Errorf("ack returned status %d", rr.Code)
	}

	second := pollUntilTurn(t, handler)
	if second.TurnNumber != 2 {
		t.Errorf("expected turn number 2, got %d", second.TurnNumber)
	}
	if second.Speaker != turn.Speaker.Other() {
		t.Errorf("expected speakers to alternate, got %q twice", second.Speaker)
	}
	if second.NewContext != nil {
		t.Error("expected no context annotation on the second turn")
	}

	rr = doRequest(handler, http.MethodPost, "/conversation/stop", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stop returned status %d", rr.Code)
	}
	rr = doRequest(handler, http.MethodGet, "/conversation/next", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409 after stop, got %d", rr.Code)
	}
}

func TestAckWithoutBody(t *testing.T) {
	srv := newTestAPIServer(t)
	handler := srv.Handler()
	doRequest(handler, http.MethodPost, "/conversation/start", nil)

	rr := doRequest(handler, http.MethodPost, "/conversation/ack", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected bodyless ack to succeed, got status %d", rr.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode ack response: %v", err)
	}
	if resp.Status != string(models.APIStatusAcknowledged) {
		t.Errorf("expected acknowledged status, got %q", resp.Status)
	}
}

func TestAckInvalidJSON(t *testing.T) {
	srv := newTestAPIServer(t)
	handler := srv.Handler()

	rr := doRequest(handler, http.MethodPost, "/conversation/ack", []byte(`{"turn_number":`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed JSON, got %d", rr.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestAPIServer(t)
	handler := srv.Handler()

	rr := doRequest(handler, http.MethodGet, "/conversation/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status returned %d", rr.Code)
	}
	var resp struct {
		Status string                    `json:"status"`
		Result models.ConversationStatus `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode status response: %v", err)
	}
	if resp.Result.Active {
		t.Error("expected inactive conversation before start")
	}

	doRequest(handler, http.MethodPost, "/conversation/start", nil)
	rr = doRequest(handler, http.MethodGet, "/conversation/status", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode status response: %v", err)
	}
	if !resp.Result.Active {
		t.Error("expected active conversation after start")
	}
	if resp.Result.RunID == "" {
		t.Error("expected a run ID after start")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestAPIServer(t)
	handler := srv.Handler()

	cases := []struct {
		path   string
		method string
		allow  string
	}{
		{"/conversation/start", http.MethodGet, http.MethodPost},
		{"/conversation/next", http.MethodPost, http.MethodGet},
		{"/conversation/ack", http.MethodGet, http.MethodPost},
		{"/conversation/status", http.MethodPost, http.MethodGet},
		{"/conversation/stop", http.MethodGet, http.MethodPost},
	}
	for _, tc := range cases {
		rr := doRequest(handler, tc.method, tc.path, nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status 405, got %d", tc.method, tc.path, rr.Code)
		}
		if allow := rr.Header().Get("Allow"); allow != tc.allow {
			t.Errorf("%s: expected Allow header %q, got %q", tc.path, tc.allow, allow)
		}
	}
}

func TestWriteJSONResponseFallback(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, map[string]interface{}{"bad": make(chan int)})
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected fallback status 500, got %d", rr.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("fallback body is not valid JSON: %v", err)
	}
	if resp.Status != string(models.APIStatusError) {
		t.Errorf("expected error status in fallback, got %q", resp.Status)
	}
}
