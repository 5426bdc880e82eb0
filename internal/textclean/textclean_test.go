package textclean

import "testing"

func TestStripThinkingTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no tags", "plain text", "plain text"},
		{"think block", "<think>private reasoning</think>Hello there", "Hello there"},
		{"thinking block", "<thinking>hmm</thinking>Hi", "Hi"},
		{"mixed case", "<Think>hmm</Think>Hi", "Hi"},
		{"multiline", "<think>line one\nline two</think>Answer", "Answer"},
		{"unterminated", "Answer first<think>cut off reasoning", "Answer first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripThinkingTags(tt.input); got != tt.expected {
				t.Errorf("StripThinkingTags(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripControlTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello<|im_end|>", "Hello"},
		{"<|im_start|>assistant says hi", "assistant says hi"},
		{"no tokens here", "no tokens here"},
		{"a<|endoftext|>b<|eot_id|>c", "abc"},
	}
	for _, tt := range tests {
		if got := StripControlTokens(tt.input); got != tt.expected {
			t.Errorf("StripControlTokens(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStripMarkdownEmphasis(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"this is **bold** text", "this is bold text"},
		{"this is *italic* text", "this is italic text"},
		{"this is __strong__ text", "this is strong text"},
		{"this is _subtle_ text", "this is subtle text"},
		{"snake_case_name stays", "snake_case_name stays"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := StripMarkdownEmphasis(tt.input); got != tt.expected {
			t.Errorf("StripMarkdownEmphasis(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStripSpeakerPrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		speakers []string
		expected string
	}{
		{"echoed prefix", "Nova: I think so", []string{"Nova", "Quill"}, "I think so"},
		{"other speaker prefix", "Quill: indeed", []string{"Nova", "Quill"}, "indeed"},
		{"case insensitive", "nova: sure", []string{"Nova"}, "sure"},
		{"leading whitespace", "  Nova: ok", []string{"Nova"}, "ok"},
		{"unknown prefix kept", "Narrator: once upon a time", []string{"Nova", "Quill"}, "Narrator: once upon a time"},
		{"mid-sentence mention kept", "I told Nova: it works", []string{"Nova"}, "I told Nova: it works"},
		{"no speakers", "Nova: hi", nil, "Nova: hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripSpeakerPrefix(tt.input, tt.speakers...); got != tt.expected {
				t.Errorf("StripSpeakerPrefix(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanFullPipeline(t *testing.T) {
	raw := "<think>should I be excited?</think>Nova: This is **huge** news!<|im_end|>"
	got := Clean(raw, "Nova", "Quill")
	want := "This is huge news!"
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanEmptyResult(t *testing.T) {
	if got := Clean("<think>nothing to say</think>", "Nova"); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
}
