package dialogue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/duetloop/duetloop/internal/models"
)

// DefaultContextTimeout is how long a locked context item stays in place
// before it becomes eligible for rotation.
const DefaultContextTimeout = 2 * time.Minute

// ContextSource supplies context items on demand and can be asked to advance
// to a new one. Advance may return the same item when nothing newer is
// available; callers must tolerate this.
type ContextSource interface {
	FetchCurrent(ctx context.Context) (*models.ContextItem, error)
	Advance(ctx context.Context) (*models.ContextItem, error)
}

// ContextLock guarantees that the context item referenced by in-flight
// generation never changes until an explicit Advance. All context changes go
// through the lock; the scheduler never talks to the source directly.
//
// The lock's fields are mutated only from the scheduler's single-flight
// generation cycle; the internal mutex exists so status reads are safe.
type ContextLock struct {
	source  ContextSource
	clock   Clock
	timeout time.Duration

	mu          sync.Mutex
	locked      *models.ContextItem
	previous    *models.ContextItem
	lockedAt    time.Time
	justChanged bool
}

// NewContextLock creates a lock over the given source. A non-positive timeout
// falls back to DefaultContextTimeout.
func NewContextLock(source ContextSource, clock Clock, timeout time.Duration) *ContextLock {
	if timeout <= 0 {
		timeout = DefaultContextTimeout
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &ContextLock{source: source, clock: clock, timeout: timeout}
}

// BootstrapLock fetches one item from the source and locks it. Used only at
// conversation start. If the source is unavailable the lock degrades to an
// empty placeholder item rather than failing; the dialogue must never stall
// on a flaky feed.
func (l *ContextLock) BootstrapLock(ctx context.Context) {
	item, err := l.source.FetchCurrent(ctx)
	if err != nil || item == nil {
		slog.Warn("ContextLock.BootstrapLock: source unavailable, locking placeholder", "error", err)
		item = &models.ContextItem{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = item
	l.lockedAt = l.clock.Now()
	l.justChanged = false
	slog.Debug("ContextLock.BootstrapLock: context locked", "url", item.URL)
}

// CurrentLocked returns the locked item. It fails with ErrNoLockedContext
// when called before any lock exists; callers bootstrap and retry.
func (l *ContextLock) CurrentLocked() (models.ContextItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked == nil {
		return models.ContextItem{}, models.ErrNoLockedContext
	}
	return *l.locked, nil
}

// TimedOut reports whether the elapsed-time rotation condition holds. The
// scheduler evaluates this once per generation cycle, never asynchronously,
// so exactly one turn observes each rotation.
func (l *ContextLock) TimedOut() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked == nil {
		return false
	}
	return l.clock.Now().Sub(l.lockedAt) >= l.timeout
}

// Advance re-locks onto the next item from the source, remembering the
// outgoing one. On source failure the current item stays locked. The rotation
// timer restarts either way, so a broken source is retried once per timeout
// period instead of on every turn.
func (l *ContextLock) Advance(ctx context.Context) {
	item, err := l.source.Advance(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockedAt = l.clock.Now()
	if err != nil || item == nil {
		slog.Warn("ContextLock.Advance: source unavailable, keeping current context", "error", err)
		return
	}
	l.previous = l.locked
	l.locked = item
	l.justChanged = true
	slog.Debug("ContextLock.Advance: context rotated", "url", item.URL)
}

// ConsumeJustChanged reports whether the lock was replaced since the last
// call and clears the flag. One-shot: only the single generation immediately
// following a rotation observes true.
func (l *ContextLock) ConsumeJustChanged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := l.justChanged
	l.justChanged = false
	return changed
}

// Previous returns the item that was locked before the last rotation, if any.
func (l *ContextLock) Previous() *models.ContextItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.previous
}

// Reset clears all lock state. Called on conversation restart.
func (l *ContextLock) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = nil
	l.previous = nil
	l.lockedAt = time.Time{}
	l.justChanged = false
}

// StatusInfo returns the locked item URL and the time remaining until the
// rotation condition holds, for the status surface.
func (l *ContextLock) StatusInfo() (url string, remaining time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked == nil {
		return "", 0
	}
	return l.locked.URL, l.timeout - l.clock.Now().Sub(l.lockedAt)
}
