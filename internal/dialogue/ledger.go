package dialogue

import (
	"strings"
	"sync"

	"github.com/duetloop/duetloop/internal/models"
)

// History ledger defaults. When the ledger grows past the cap it is trimmed
// down to the retained window in one step rather than entry-by-entry.
const (
	DefaultHistoryCap    = 40
	DefaultHistoryRetain = 20
	DefaultPromptWindow  = 20
)

// EmptyHistorySentinel is returned by WindowForPrompt before any turn exists.
const EmptyHistorySentinel = "(the conversation has just started)"

// HistoryLedger is an append-only, bounded record of past turns used to build
// generation prompts. Eviction drops the oldest entries first.
type HistoryLedger struct {
	mu       sync.Mutex
	entries  []models.TranscriptEntry
	capacity int
	retain   int
}

// NewHistoryLedger creates a ledger with the given cap and retained window.
// Non-positive values fall back to the defaults; retain is clamped to cap.
func NewHistoryLedger(capacity, retain int) *HistoryLedger {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	if retain <= 0 {
		retain = DefaultHistoryRetain
	}
	if retain > capacity {
		retain = capacity
	}
	return &HistoryLedger{capacity: capacity, retain: retain}
}

// Append records one spoken line. When the ledger exceeds its cap it is
// trimmed down to the retained window of most recent entries.
func (l *HistoryLedger) Append(speakerName, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, models.TranscriptEntry{SpeakerName: speakerName, Text: text})
	if len(l.entries) > l.capacity {
		kept := make([]models.TranscriptEntry, l.retain)
		copy(kept, l.entries[len(l.entries)-l.retain:])
		l.entries = kept
	}
}

// Len returns the number of retained entries.
func (l *HistoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the retained entries in insertion order.
func (l *HistoryLedger) Entries() []models.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]models.TranscriptEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// WindowForPrompt renders the most recent maxEntries as a newline-joined
// transcript. Returns EmptyHistorySentinel when no turns have been recorded.
func (l *HistoryLedger) WindowForPrompt(maxEntries int) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return EmptyHistorySentinel
	}
	start := 0
	if maxEntries > 0 && len(l.entries) > maxEntries {
		start = len(l.entries) - maxEntries
	}
	var lines []string
	for _, entry := range l.entries[start:] {
		lines = append(lines, entry.SpeakerName+": "+entry.Text)
	}
	return strings.Join(lines, "\n")
}

// Reset discards all entries.
func (l *HistoryLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
