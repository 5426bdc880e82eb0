// Package textclean provides pure text-cleanup functions for generated
// utterances. Generation backends occasionally echo model artifacts back into
// the text: reasoning tags, special control tokens, markdown emphasis, or the
// speaker's own name as a transcript-style prefix. All of that is stripped
// here, keeping the dialogue engine free of string-munging detail.
package textclean

import (
	"regexp"
	"strings"
)

var (
	// thinkingTagRe matches a complete <think>/<thinking> block, non-greedy.
	thinkingTagRe = regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`)
	// danglingThinkingRe matches an unterminated thinking block, which some
	// backends emit when the completion is cut off mid-reasoning.
	danglingThinkingRe = regexp.MustCompile(`(?is)<think(?:ing)?>.*$`)
	// controlTokenRe matches chat-template control tokens such as
	// <|im_end|> or <|endoftext|>.
	controlTokenRe = regexp.MustCompile(`<\|[^|>]*\|>`)
	boldRe         = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe       = regexp.MustCompile(`\*([^*]+)\*`)
	boldUnderRe    = regexp.MustCompile(`__([^_]+)__`)
	italicUnderRe  = regexp.MustCompile(`\b_([^_]+)_\b`)
)

// Clean applies the full cleanup pipeline to raw backend output. speakerNames
// are the labels whose echoed "Name:" prefixes should be stripped.
func Clean(raw string, speakerNames ...string) string {
	text := StripThinkingTags(raw)
	text = StripControlTokens(text)
	text = StripMarkdownEmphasis(text)
	text = StripSpeakerPrefix(text, speakerNames...)
	return strings.TrimSpace(text)
}

// StripThinkingTags removes <think>...</think> and <thinking>...</thinking>
// blocks, including an unterminated trailing block.
func StripThinkingTags(text string) string {
	text = thinkingTagRe.ReplaceAllString(text, "")
	return danglingThinkingRe.ReplaceAllString(text, "")
}

// StripControlTokens removes chat-template control tokens like <|im_end|>.
func StripControlTokens(text string) string {
	return controlTokenRe.ReplaceAllString(text, "")
}

// StripMarkdownEmphasis unwraps **bold**, *italic*, __bold__ and _italic_
// spans, keeping their inner text.
func StripMarkdownEmphasis(text string) string {
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = italicUnderRe.ReplaceAllString(text, "$1")
	return text
}

// StripSpeakerPrefix removes a leading "Name:" transcript prefix when Name is
// one of the known speaker labels (case-insensitive). Only the first matching
// prefix is removed; a speaker quoting the other mid-sentence is left alone.
func StripSpeakerPrefix(text string, speakerNames ...string) string {
	trimmed := strings.TrimLeft(text, " \t\n")
	for _, name := range speakerNames {
		if name == "" {
			continue
		}
		prefixLen := len(name) + 1
		if len(trimmed) < prefixLen {
			continue
		}
		if strings.EqualFold(trimmed[:len(name)], name) && trimmed[len(name)] == ':' {
			return strings.TrimLeft(trimmed[prefixLen:], " \t")
		}
	}
	return text
}
