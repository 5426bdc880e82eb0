package dialogue

import "github.com/duetloop/duetloop/internal/models"

// Persona describes one of the two speakers: its identity, display label,
// system prompt, and the fixed fallback lines substituted when the generation
// backend fails.
type Persona struct {
	ID            models.SpeakerID
	Name          string
	SystemPrompt  string
	FallbackLines []string
}

// FallbackLine returns a deterministic persona-appropriate line for the given
// turn number. Used when generation fails so the conversation never stalls.
func (p Persona) FallbackLine(turnNumber int) string {
	if len(p.FallbackLines) == 0 {
		return "..."
	}
	if turnNumber < 1 {
		turnNumber = 1
	}
	return p.FallbackLines[(turnNumber-1)%len(p.FallbackLines)]
}

// DefaultPersonas returns the built-in speaker pair: Nova opens, Quill answers.
func DefaultPersonas() [2]Persona {
	return [2]Persona{
		{
			ID:   models.SpeakerA,
			Name: "Nova",
			SystemPrompt: "You are Nova, the upbeat co-host of a live commentary show. " +
				"You and your co-host Quill react to whatever post is currently on screen. " +
				"You find the interesting angle in anything and you love a wild tangent. " +
				"Reply with one to three sentences of spoken dialogue, plain text, no stage directions.",
			FallbackLines: []string{
				"Okay, I need a second to process that one.",
				"Hold on, my train of thought just left without me.",
				"You know what, let's just sit with that for a moment.",
			},
		},
		{
			ID:   models.SpeakerB,
			Name: "Quill",
			SystemPrompt: "You are Quill, the dry and skeptical co-host of a live commentary show. " +
				"You and your co-host Nova react to whatever post is currently on screen. " +
				"You puncture hype, notice what everyone else missed, and keep Nova honest. " +
				"Reply with one to three sentences of spoken dialogue, plain text, no stage directions.",
			FallbackLines: []string{
				"I'm going to reserve judgment on that.",
				"Hm. Let me think about how to put this politely.",
				"That deserves a longer pause than I can give it.",
			},
		},
	}
}
