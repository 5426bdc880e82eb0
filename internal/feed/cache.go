package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/duetloop/duetloop/internal/models"
)

// fallbackListLimit is the number of cached items loaded when the upstream
// source becomes unavailable.
const fallbackListLimit = 50

// ItemStore persists fetched context items so a flaky upstream feed can be
// ridden out across restarts.
type ItemStore interface {
	SaveItem(item models.ContextItem) error
	ListItems(limit int) ([]models.ContextItem, error)
	Close() error
}

// DetectDSNType determines the database driver implied by a DSN.
// PostgreSQL URLs and keyword DSNs return "postgres"; anything else is
// treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewItemStore opens an item store for the given DSN, selecting the driver
// via DetectDSNType.
func NewItemStore(dsn string) (ItemStore, error) {
	if DetectDSNType(dsn) == "postgres" {
		slog.Debug("NewItemStore: using PostgreSQL item store")
		return NewPostgresItemStore(dsn)
	}
	slog.Debug("NewItemStore: using SQLite item store", "path", dsn)
	return NewSQLiteItemStore(dsn)
}

// CachedSource wraps another source with write-through persistence. Every
// successfully fetched item is saved; when the upstream fails, previously
// cached items are served in insertion order instead of failing the caller.
type CachedSource struct {
	upstream Source
	store    ItemStore

	mu       sync.Mutex
	fallback []models.ContextItem
	pos      int
}

// NewCachedSource wraps the given source with the given store.
func NewCachedSource(upstream Source, store ItemStore) *CachedSource {
	return &CachedSource{upstream: upstream, store: store}
}

// FetchCurrent fetches from the upstream and persists the result. On upstream
// failure it serves the current cached item, if any.
func (s *CachedSource) FetchCurrent(ctx context.Context) (*models.ContextItem, error) {
	item, err := s.upstream.FetchCurrent(ctx)
	if err == nil {
		s.saveItem(*item)
		return item, nil
	}
	slog.Warn("CachedSource.FetchCurrent: upstream failed, serving cached item", "error", err)
	return s.serveCached(false, err)
}

// Advance advances the upstream and persists the result. On upstream failure
// it rotates through the cached items instead.
func (s *CachedSource) Advance(ctx context.Context) (*models.ContextItem, error) {
	item, err := s.upstream.Advance(ctx)
	if err == nil {
		s.saveItem(*item)
		return item, nil
	}
	slog.Warn("CachedSource.Advance: upstream failed, rotating cached items", "error", err)
	return s.serveCached(true, err)
}

// Close releases the underlying store.
func (s *CachedSource) Close() error {
	return s.store.Close()
}

// saveItem persists one item, best-effort.
func (s *CachedSource) saveItem(item models.ContextItem) {
	if err := s.store.SaveItem(item); err != nil {
		slog.Warn("CachedSource.saveItem: failed to persist item", "error", err, "url", item.URL)
	}
}

// serveCached returns an item from the persisted cache, loading the fallback
// list on first use. upstreamErr is returned when the cache is empty too.
func (s *CachedSource) serveCached(advance bool, upstreamErr error) (*models.ContextItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.fallback) == 0 {
		items, err := s.store.ListItems(fallbackListLimit)
		if err != nil {
			slog.Error("CachedSource.serveCached: failed to list cached items", "error", err)
			return nil, upstreamErr
		}
		s.fallback = items
		s.pos = 0
	}
	if len(s.fallback) == 0 {
		return nil, upstreamErr
	}
	if advance {
		s.pos = (s.pos + 1) % len(s.fallback)
	}
	item := s.fallback[s.pos%len(s.fallback)]
	return &item, nil
}
