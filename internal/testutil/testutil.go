// Package testutil provides common test utilities and helpers for DuetLoop tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/duetloop/duetloop/internal/api"
	"github.com/duetloop/duetloop/internal/dialogue"
	"github.com/duetloop/duetloop/internal/feed"
	"github.com/duetloop/duetloop/internal/models"
)

// ScriptedGenerator is a deterministic generation backend for tests. It
// returns the configured replies in order, cycling when exhausted, or
// numbered placeholder lines when no replies are configured.
type ScriptedGenerator struct {
	Replies []string

	mu    sync.Mutex
	calls int
}

// GeneratePromptWithContext implements the dialogue generator contract.
func (g *ScriptedGenerator) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.Replies) == 0 {
		return fmt.Sprintf("scripted line %d", g.calls), nil
	}
	return g.Replies[(g.calls-1)%len(g.Replies)], nil
}

// Calls returns how many generations have been requested.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// TestFeedItems returns a small set of fixture feed items.
func TestFeedItems() []models.ContextItem {
	return []models.ContextItem{
		{
			URL:          "https://example.com/post/1",
			Author:       "alice",
			Title:        "A raccoon learned to open my mailbox",
			Body:         "It now checks the mail before I do.",
			Score:        4821,
			CommentCount: 312,
			Community:    "mildlyinteresting",
		},
		{
			URL:          "https://example.com/post/2",
			Author:       "bob",
			Title:        "TIL honey never spoils",
			Score:        901,
			CommentCount: 57,
			Community:    "todayilearned",
		},
	}
}

// NewTestScheduler creates a scheduler over a static feed source and a
// scripted generator. The returned generator can be inspected for call counts.
func NewTestScheduler(t *testing.T) (*dialogue.TurnScheduler, *ScriptedGenerator) {
	t.Helper()
	source, err := feed.NewSource(feed.WithStaticItems(TestFeedItems()...))
	if err != nil {
		t.Fatalf("failed to create static feed source: %v", err)
	}
	gen := &ScriptedGenerator{}
	return dialogue.NewTurnScheduler(gen, source, dialogue.Config{}), gen
}

// NewTestServer creates a test API server with in-memory dependencies.
// This centralizes the test server creation logic used across multiple test files.
func NewTestServer(t *testing.T) *api.Server {
	t.Helper()
	sched, _ := NewTestScheduler(t)
	return api.NewServer(sched)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
