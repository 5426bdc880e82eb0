package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSpeakerIDOther(t *testing.T) {
	if SpeakerA.Other() != SpeakerB {
		t.Errorf("expected A.Other() == B, got %s", SpeakerA.Other())
	}
	if SpeakerB.Other() != SpeakerA {
		t.Errorf("expected B.Other() == A, got %s", SpeakerB.Other())
	}
}

func TestIsValidSpeakerID(t *testing.T) {
	if !IsValidSpeakerID(SpeakerA) || !IsValidSpeakerID(SpeakerB) {
		t.Error("expected A and B to be valid speaker IDs")
	}
	if IsValidSpeakerID(SpeakerID("C")) {
		t.Error("expected C to be invalid")
	}
}

func TestTurnValidate(t *testing.T) {
	turn := Turn{Speaker: SpeakerA, SpeakerName: "Nova", Text: "hello", TurnNumber: 1}
	if err := turn.Validate(); err != nil {
		t.Errorf("expected valid turn, got error: %v", err)
	}

	bad := Turn{Speaker: SpeakerID("X"), TurnNumber: 1}
	if err := bad.Validate(); err != ErrInvalidSpeaker {
		t.Errorf("expected ErrInvalidSpeaker, got %v", err)
	}

	zero := Turn{Speaker: SpeakerA, TurnNumber: 0}
	if err := zero.Validate(); err == nil {
		t.Error("expected error for turn number 0")
	}

	long := Turn{Speaker: SpeakerA, TurnNumber: 1, Text: strings.Repeat("x", MaxTurnTextLength+1)}
	if err := long.Validate(); err == nil {
		t.Error("expected error for oversized turn text")
	}
}

func TestContextItemStructuralEquality(t *testing.T) {
	a := ContextItem{URL: "https://example.com/1", Title: "one", Score: 5}
	b := ContextItem{URL: "https://example.com/1", Title: "one", Score: 5}
	if a != b {
		t.Error("expected structurally identical items to compare equal")
	}
	b.Score = 6
	if a == b {
		t.Error("expected items with different counters to compare unequal")
	}
}

func TestContextItemPromptText(t *testing.T) {
	empty := ContextItem{}
	if !empty.IsZero() {
		t.Error("expected zero item to report IsZero")
	}
	if !strings.Contains(empty.PromptText(), "no feed item") {
		t.Errorf("expected placeholder text for zero item, got %q", empty.PromptText())
	}

	item := ContextItem{
		URL:          "https://example.com/post",
		Author:       "someone",
		Title:        "A title",
		Body:         "Body text",
		Score:        42,
		CommentCount: 7,
		Community:    "golang",
	}
	text := item.PromptText()
	for _, want := range []string{"A title", "someone", "golang", "42", "Body text"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected prompt text to contain %q, got %q", want, text)
		}
	}
}

func TestTurnJSONShape(t *testing.T) {
	item := ContextItem{URL: "https://example.com/post", Title: "A title"}
	turn := Turn{Speaker: SpeakerA, SpeakerName: "Nova", Text: "hi", TurnNumber: 1, NewContext: &item}
	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"speaker"`, `"speaker_name"`, `"text"`, `"turn_number"`, `"new_context"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected JSON to contain %s, got %s", key, data)
		}
	}

	// new_context must be omitted entirely on ordinary turns.
	plain := Turn{Speaker: SpeakerB, SpeakerName: "Quill", Text: "hi", TurnNumber: 2}
	data, err = json.Marshal(plain)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "new_context") {
		t.Errorf("expected new_context to be omitted, got %s", data)
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]int{"n": 1})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %s", resp.Status)
	}
	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) || errResp.Message != "boom" {
		t.Errorf("unexpected error response: %+v", errResp)
	}
	ack := Acknowledged()
	if ack.Status != string(APIStatusAcknowledged) {
		t.Errorf("expected acknowledged status, got %s", ack.Status)
	}
}
