// Package models defines the core data structures for DuetLoop.
//
// It includes the turn and context-item types shared between the dialogue
// engine, the feed sources, and the API layer.
package models

import (
	"errors"
	"fmt"
	"time"
)

// SpeakerID identifies one of the two conversation participants.
type SpeakerID string

const (
	// SpeakerA is the participant that opens the conversation by default.
	SpeakerA SpeakerID = "A"
	// SpeakerB is the second participant.
	SpeakerB SpeakerID = "B"
)

// IsValidSpeakerID checks if the given speaker ID is one of the two supported identities.
func IsValidSpeakerID(id SpeakerID) bool {
	return id == SpeakerA || id == SpeakerB
}

// Other returns the opposite speaker identity.
func (id SpeakerID) Other() SpeakerID {
	if id == SpeakerA {
		return SpeakerB
	}
	return SpeakerA
}

// Validation constants shared across modules.
const (
	// MaxTurnTextLength defines the maximum allowed length for a generated turn.
	MaxTurnTextLength = 4096
	// MaxContextBodyLength defines the maximum body length carried into prompts.
	MaxContextBodyLength = 8192
)

// Error variables for better error handling and testability.
var (
	// ErrNoLockedContext indicates a context read before any bootstrap lock.
	ErrNoLockedContext = errors.New("no context item is locked")
	// ErrGenerationFailed indicates the generation backend could not produce text.
	ErrGenerationFailed = errors.New("generation backend failed")
	// ErrContextSourceUnavailable indicates the feed source returned no item.
	ErrContextSourceUnavailable = errors.New("context source unavailable")
	// ErrConversationNotActive indicates a poll against a stopped conversation.
	ErrConversationNotActive = errors.New("conversation is not active")
	// ErrInvalidSpeaker indicates an unknown speaker identity.
	ErrInvalidSpeaker = errors.New("invalid speaker identity")
)

// ContextItem is the shared display content both speakers react to.
// It is treated as a value type: items are compared structurally, never by identity.
type ContextItem struct {
	URL          string `json:"url"`
	Author       string `json:"author,omitempty"`
	Title        string `json:"title"`
	Body         string `json:"body,omitempty"`
	Score        int    `json:"score"`
	CommentCount int    `json:"comment_count"`
	Community    string `json:"community,omitempty"`
}

// IsZero reports whether the item carries no content at all.
func (c ContextItem) IsZero() bool {
	return c == ContextItem{}
}

// PromptText renders the item as a plain-text block suitable for prompt building.
func (c ContextItem) PromptText() string {
	if c.IsZero() {
		return "(no feed item is currently available)"
	}
	body := c.Body
	if len(body) > MaxContextBodyLength {
		body = body[:MaxContextBodyLength]
	}
	text := fmt.Sprintf("Title: %s\nPosted by: %s", c.Title, c.Author)
	if c.Community != "" {
		text += fmt.Sprintf("\nCommunity: %s", c.Community)
	}
	text += fmt.Sprintf("\nScore: %d | Comments: %d", c.Score, c.CommentCount)
	if body != "" {
		text += "\n\n" + body
	}
	return text
}

// Turn is one utterance by one speaker. Turns are immutable once created;
// the dialogue scheduler is the only producer.
type Turn struct {
	Speaker     SpeakerID    `json:"speaker"`
	SpeakerName string       `json:"speaker_name"`
	Text        string       `json:"text"`
	TurnNumber  int          `json:"turn_number"`
	NewContext  *ContextItem `json:"new_context,omitempty"`
}

// Validate performs basic sanity checks on a turn.
func (t *Turn) Validate() error {
	if !IsValidSpeakerID(t.Speaker) {
		return ErrInvalidSpeaker
	}
	if t.TurnNumber < 1 {
		return fmt.Errorf("turn number must be >= 1, got %d", t.TurnNumber)
	}
	if len(t.Text) > MaxTurnTextLength {
		return fmt.Errorf("turn text exceeds maximum length of %d", MaxTurnTextLength)
	}
	return nil
}

// TranscriptEntry is one line of the rolling conversation history.
type TranscriptEntry struct {
	SpeakerName string `json:"speaker_name"`
	Text        string `json:"text"`
}

// ConversationStatus is the status document exposed by the API layer.
type ConversationStatus struct {
	Active         bool      `json:"active"`
	Generating     bool      `json:"generating"`
	TurnCount      int       `json:"turn_count"`
	CurrentSpeaker SpeakerID `json:"current_speaker"`
	PendingReady   bool      `json:"pending_ready"`
	LastAckedTurn  int       `json:"last_acked_turn"`
	RunID          string    `json:"run_id,omitempty"`
	ContextURL     string    `json:"context_url,omitempty"`
	// NextRotationIn is the time remaining until the locked context becomes
	// eligible for rotation, in seconds. Negative values mean the rotation is
	// already due and will fire on the next generation cycle.
	NextRotationIn float64 `json:"next_rotation_in_seconds"`
}

// WaitingResponse is returned by the poll endpoint while generation is in flight.
type WaitingResponse struct {
	Waiting bool `json:"waiting"`
}

// AckRequest is the optional body of an acknowledgement call.
type AckRequest struct {
	TurnNumber int `json:"turn_number,omitempty"`
}

// StartResponse reports the result of a start/stop control call.
type StartResponse struct {
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitempty"`
}
