// Package feed provides the shared display-feed sources for DuetLoop.
//
// A feed source supplies the "current context" item both speakers react to.
// The production source reads a Reddit-style JSON listing; a static source
// serves fixture items for tests and offline runs; an optional persistent
// cache rides out upstream flakiness across restarts.
package feed

import (
	"context"
	"net/http"

	"github.com/duetloop/duetloop/internal/models"
)

// Source supplies context items on demand and can be asked to advance to a
// new one. Advance may return the same item when nothing newer is available;
// callers must tolerate this.
type Source interface {
	FetchCurrent(ctx context.Context) (*models.ContextItem, error)
	Advance(ctx context.Context) (*models.ContextItem, error)
}

// Opts holds configuration for feed source construction.
type Opts struct {
	BaseURL    string
	Category   string
	UserAgent  string
	HTTPClient *http.Client
	CacheDSN   string
	Items      []models.ContextItem
}

// Option configures feed source construction.
type Option func(*Opts)

// WithBaseURL sets the listing base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithCategory sets the feed category (the subreddit-style community name).
func WithCategory(category string) Option {
	return func(o *Opts) { o.Category = category }
}

// WithUserAgent sets the HTTP User-Agent used for listing requests.
func WithUserAgent(userAgent string) Option {
	return func(o *Opts) { o.UserAgent = userAgent }
}

// WithHTTPClient sets the HTTP client used for listing requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// WithCacheDSN enables the persistent item cache. The DSN selects the driver:
// PostgreSQL URLs/keyword DSNs use lib/pq, anything else is treated as an
// SQLite file path.
func WithCacheDSN(dsn string) Option {
	return func(o *Opts) { o.CacheDSN = dsn }
}

// WithStaticItems builds a fixture-backed source instead of a live one.
func WithStaticItems(items ...models.ContextItem) Option {
	return func(o *Opts) { o.Items = items }
}

// NewSource constructs a feed source from the given options. A static item
// list takes precedence over the live listing source; a cache DSN wraps the
// chosen source with write-through persistence.
func NewSource(opts ...Option) (Source, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	var src Source
	if len(cfg.Items) > 0 {
		src = NewStaticSource(cfg.Items...)
	} else {
		src = NewRedditSource(opts...)
	}

	if cfg.CacheDSN != "" {
		store, err := NewItemStore(cfg.CacheDSN)
		if err != nil {
			return nil, err
		}
		src = NewCachedSource(src, store)
	}
	return src, nil
}
