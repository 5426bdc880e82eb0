package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/duetloop/duetloop/internal/models"
)

// StaticSource serves a fixed list of items, cycling on Advance. It backs
// tests and offline runs where no live feed is reachable.
type StaticSource struct {
	mu    sync.Mutex
	items []models.ContextItem
	pos   int
}

// NewStaticSource creates a source over the given items.
func NewStaticSource(items ...models.ContextItem) *StaticSource {
	return &StaticSource{items: items}
}

// FetchCurrent returns the item at the current position.
func (s *StaticSource) FetchCurrent(ctx context.Context) (*models.ContextItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return nil, fmt.Errorf("%w: static source has no items", models.ErrContextSourceUnavailable)
	}
	item := s.items[s.pos]
	return &item, nil
}

// Advance cycles to the next item, wrapping around at the end.
func (s *StaticSource) Advance(ctx context.Context) (*models.ContextItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return nil, fmt.Errorf("%w: static source has no items", models.ErrContextSourceUnavailable)
	}
	s.pos = (s.pos + 1) % len(s.items)
	item := s.items[s.pos]
	return &item, nil
}
