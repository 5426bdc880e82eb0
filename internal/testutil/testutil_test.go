package testutil

import (
	"context"
	"testing"
)

func TestNewTestServer(t *testing.T) {
	server := NewTestServer(t)
	if server == nil {
		t.Fatal("NewTestServer returned nil")
	}
}

func TestScriptedGeneratorCycles(t *testing.T) {
	gen := &ScriptedGenerator{Replies: []string{"one", "two"}}
	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		text, err := gen.GeneratePromptWithContext(context.Background(), "sys", "user")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, text)
	}
	want := []string{"one", "two", "one"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reply %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if gen.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", gen.Calls())
	}
}

func TestScriptedGeneratorPlaceholders(t *testing.T) {
	gen := &ScriptedGenerator{}
	text, err := gen.GeneratePromptWithContext(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "scripted line 1" {
		t.Errorf("expected numbered placeholder, got %q", text)
	}
}
