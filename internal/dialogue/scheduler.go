// Package dialogue implements the turn-scheduling engine for DuetLoop: the
// alternating-speaker state machine, the context-lock/rotation protocol, and
// the bounded history window behind prompt construction.
//
// The scheduler is always in exactly one of three states: idle with no
// pending turn, generating, or holding one pending turn. The generating flag
// is the sole mutual-exclusion primitive for generation: a reentrant attempt
// to start generation while one is in flight is a no-op, never a queued
// retry. That single invariant is what prevents duplicate turns and duplicate
// context rotations.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/duetloop/duetloop/internal/models"
	"github.com/duetloop/duetloop/internal/textclean"
	"github.com/duetloop/duetloop/internal/util"
)

// Generator produces one utterance from a system prompt and a user prompt.
// Implemented by the genai client; tests substitute scripted generators.
type Generator interface {
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds scheduler construction parameters. Zero values fall back to
// the package defaults.
type Config struct {
	Personas       [2]Persona
	InitialSpeaker models.SpeakerID
	ContextTimeout time.Duration
	HistoryCap     int
	HistoryRetain  int
	PromptWindow   int
	Clock          Clock
}

// TurnScheduler owns all conversation state. It is the single writer of the
// scheduler state, the context lock, and the history ledger.
type TurnScheduler struct {
	generator    Generator
	lock         *ContextLock
	history      *HistoryLedger
	personas     map[models.SpeakerID]Persona
	speakerNames []string
	initial      models.SpeakerID
	promptWindow int
	clock        Clock

	mu             sync.Mutex
	active         bool
	generating     bool
	currentSpeaker models.SpeakerID
	turnCount      int
	pending        *models.Turn
	lastAcked      int
	runID          string
	runEpoch       int
	startedAt      time.Time
}

// NewTurnScheduler creates a scheduler over the given generation backend and
// context source.
func NewTurnScheduler(generator Generator, source ContextSource, cfg Config) *TurnScheduler {
	personas := cfg.Personas
	if personas[0].Name == "" && personas[1].Name == "" {
		personas = DefaultPersonas()
	}
	initial := cfg.InitialSpeaker
	if !models.IsValidSpeakerID(initial) {
		initial = models.SpeakerA
	}
	promptWindow := cfg.PromptWindow
	if promptWindow <= 0 {
		promptWindow = DefaultPromptWindow
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}

	byID := make(map[models.SpeakerID]Persona, 2)
	var names []string
	for _, p := range personas {
		byID[p.ID] = p
		names = append(names, p.Name)
	}

	return &TurnScheduler{
		generator:      generator,
		lock:           NewContextLock(source, clock, cfg.ContextTimeout),
		history:        NewHistoryLedger(cfg.HistoryCap, cfg.HistoryRetain),
		personas:       byID,
		speakerNames:   names,
		initial:        initial,
		promptWindow:   promptWindow,
		clock:          clock,
		currentSpeaker: initial,
	}
}

// Start resets all conversation state and begins generating the first turn.
// Calling Start on an active conversation restarts it from scratch; a stale
// in-flight generation from the previous run is discarded when it completes.
func (s *TurnScheduler) Start() models.StartResponse {
	s.mu.Lock()
	s.runEpoch++
	epoch := s.runEpoch
	s.active = true
	s.generating = false
	s.pending = nil
	s.turnCount = 0
	s.lastAcked = 0
	s.currentSpeaker = s.initial
	s.runID = util.GenerateRunID()
	s.startedAt = s.clock.Now()
	s.history.Reset()
	s.lock.Reset()
	s.beginGenerationLocked(epoch)
	resp := models.StartResponse{Active: true, StartedAt: s.startedAt}
	runID := s.runID
	s.mu.Unlock()

	slog.Info("TurnScheduler.Start: conversation started", "run_id", runID, "initial_speaker", s.initial)
	return resp
}

// Stop flips the conversation inactive. It does not abort in-flight
// generation; a result arriving after Stop is discarded.
func (s *TurnScheduler) Stop() models.StartResponse {
	s.mu.Lock()
	s.active = false
	runID := s.runID
	s.mu.Unlock()

	slog.Info("TurnScheduler.Stop: conversation stopped", "run_id", runID)
	return models.StartResponse{Active: false}
}

// Poll returns the next turn if one is ready, or (nil, nil) while generation
// is in flight. Delivering a pending turn immediately kicks off generation of
// the following one (lookahead depth 1). Poll never blocks on the lookahead
// path; the transient idle state generates synchronously.
func (s *TurnScheduler) Poll(ctx context.Context) (*models.Turn, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, models.ErrConversationNotActive
	}
	if s.pending != nil {
		turn := s.pending
		s.pending = nil
		s.beginGenerationLocked(s.runEpoch)
		s.mu.Unlock()
		slog.Debug("TurnScheduler.Poll: delivering turn", "turn_number", turn.TurnNumber, "speaker", turn.Speaker)
		return turn, nil
	}
	if s.generating {
		s.mu.Unlock()
		return nil, nil
	}

	// Idle with nothing pending: only possible transiently or after an
	// error. Generate one turn on the poll path.
	epoch := s.runEpoch
	s.generating = true
	s.mu.Unlock()

	s.generateTurn(ctx, epoch)

	s.mu.Lock()
	turn := s.pending
	if turn != nil {
		s.pending = nil
		s.beginGenerationLocked(s.runEpoch)
	}
	s.mu.Unlock()
	if turn != nil {
		slog.Debug("TurnScheduler.Poll: delivering synchronously generated turn", "turn_number", turn.TurnNumber, "speaker", turn.Speaker)
	}
	return turn, nil
}

// Acknowledge records that the consumer finished presenting a turn. Advisory
// in the current design: lookahead depth is fixed at 1 and generation of the
// next turn starts on delivery, not on acknowledgement. Safe to call
// redundantly and with stale turn numbers.
func (s *TurnScheduler) Acknowledge(turnNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turnNumber > s.lastAcked && turnNumber <= s.turnCount {
		s.lastAcked = turnNumber
	}
	slog.Debug("TurnScheduler.Acknowledge: turn acknowledged", "turn_number", turnNumber, "last_acked", s.lastAcked)
}

// Status returns a snapshot of the conversation state.
func (s *TurnScheduler) Status() models.ConversationStatus {
	s.mu.Lock()
	status := models.ConversationStatus{
		Active:         s.active,
		Generating:     s.generating,
		TurnCount:      s.turnCount,
		CurrentSpeaker: s.currentSpeaker,
		PendingReady:   s.pending != nil,
		LastAckedTurn:  s.lastAcked,
		RunID:          s.runID,
	}
	s.mu.Unlock()

	url, remaining := s.lock.StatusInfo()
	status.ContextURL = url
	status.NextRotationIn = remaining.Seconds()
	return status
}

// beginGenerationLocked starts asynchronous generation of the next turn.
// Callers must hold s.mu. Reentrant attempts while a generation is in flight
// are no-ops.
func (s *TurnScheduler) beginGenerationLocked(epoch int) {
	if s.generating || !s.active || s.pending != nil {
		return
	}
	s.generating = true
	go s.generateTurn(context.Background(), epoch)
}

// generateTurn runs one full generation cycle and installs the result as the
// pending turn. It is never concurrently executed with itself: the generating
// flag gates entry, and only the owning cycle clears it.
func (s *TurnScheduler) generateTurn(ctx context.Context, epoch int) {
	s.mu.Lock()
	isFirstTurn := s.turnCount == 0
	turnNumber := s.turnCount + 1
	speaker := s.currentSpeaker
	s.mu.Unlock()

	persona := s.personas[speaker]

	// Context always comes through the lock, never from the source directly.
	item, err := s.lock.CurrentLocked()
	if errors.Is(err, models.ErrNoLockedContext) {
		s.lock.BootstrapLock(ctx)
		item, _ = s.lock.CurrentLocked()
	}

	// The rotation condition is evaluated exactly once per cycle, so exactly
	// one turn observes each context transition.
	surfaceContext := isFirstTurn
	if !isFirstTurn && s.lock.TimedOut() {
		s.lock.Advance(ctx)
		item, _ = s.lock.CurrentLocked()
		surfaceContext = true
	}
	justChanged := s.lock.ConsumeJustChanged()

	historyText := s.history.WindowForPrompt(s.promptWindow)
	userPrompt := buildUserPrompt(persona, historyText, item, justChanged)

	raw, err := s.generator.GeneratePromptWithContext(ctx, persona.SystemPrompt, userPrompt)
	if err != nil {
		raw = persona.FallbackLine(turnNumber)
		slog.Warn("TurnScheduler.generateTurn: generation failed, substituting fallback", "error", err, "speaker", speaker, "turn_number", turnNumber)
	}
	text := textclean.Clean(raw, s.speakerNames...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.runEpoch {
		// A restart superseded this cycle; the new run owns the flags.
		slog.Debug("TurnScheduler.generateTurn: discarding stale result", "epoch", epoch, "current_epoch", s.runEpoch)
		return
	}
	s.generating = false
	if !s.active {
		slog.Debug("TurnScheduler.generateTurn: conversation stopped, discarding result", "turn_number", turnNumber)
		return
	}

	// An empty cleaned text still yields a turn (the consumer decides whether
	// silence is meaningful) but is not pushed into history.
	if text != "" {
		s.history.Append(persona.Name, text)
	}
	s.turnCount = turnNumber
	turn := &models.Turn{
		Speaker:     speaker,
		SpeakerName: persona.Name,
		Text:        text,
		TurnNumber:  turnNumber,
	}
	if surfaceContext && !item.IsZero() {
		itemCopy := item
		turn.NewContext = &itemCopy
	}
	s.pending = turn
	s.currentSpeaker = speaker.Other()
}

// buildUserPrompt assembles the generation prompt from the locked context and
// the history window.
func buildUserPrompt(persona Persona, historyText string, item models.ContextItem, justChanged bool) string {
	var b strings.Builder
	if justChanged {
		b.WriteString("The feed just moved on to a new post.\n\n")
	}
	b.WriteString("Current feed post:\n")
	b.WriteString(item.PromptText())
	b.WriteString("\n\nConversation so far:\n")
	b.WriteString(historyText)
	fmt.Fprintf(&b, "\n\nYou are %s. Reply with your next line of dialogue only.", persona.Name)
	return b.String()
}
