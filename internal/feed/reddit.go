// Package feed provides the shared display-feed sources for DuetLoop.
//
// This file implements the live listing source: a Reddit-style JSON feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/duetloop/duetloop/internal/models"
)

// Defaults for the live listing source.
const (
	DefaultBaseURL   = "https://www.reddit.com"
	DefaultCategory  = "popular"
	DefaultUserAgent = "duetloop/1.0"
	// listingLimit is the number of posts requested per listing fetch.
	listingLimit = 25
	// defaultRequestTimeout bounds a single listing request.
	defaultRequestTimeout = 15 * time.Second
)

// RedditSource serves context items from a Reddit-style JSON listing.
// It fetches one page of posts and walks through them on Advance, refetching
// when the page is exhausted.
type RedditSource struct {
	baseURL   string
	category  string
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	items []models.ContextItem
	pos   int
}

// NewRedditSource creates a live listing source.
func NewRedditSource(opts ...Option) *RedditSource {
	cfg := Opts{
		BaseURL:   DefaultBaseURL,
		Category:  DefaultCategory,
		UserAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Category == "" {
		cfg.Category = DefaultCategory
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &RedditSource{
		baseURL:   cfg.BaseURL,
		category:  cfg.Category,
		userAgent: cfg.UserAgent,
		client:    client,
	}
}

// FetchCurrent returns the item at the current listing position, fetching the
// listing first if none has been loaded yet.
func (s *RedditSource) FetchCurrent(ctx context.Context) (*models.ContextItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		if err := s.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}
	item := s.items[s.pos]
	return &item, nil
}

// Advance moves to the next item. When the fetched page is exhausted it
// refetches the listing; if the refetch fails it wraps around the page it
// already has, so the caller may observe a previously served item again.
func (s *RedditSource) Advance(ctx context.Context) (*models.ContextItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos+1 < len(s.items) {
		s.pos++
		item := s.items[s.pos]
		return &item, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		if len(s.items) == 0 {
			return nil, err
		}
		slog.Warn("RedditSource.Advance: refresh failed, recycling fetched page", "error", err, "page_size", len(s.items))
		s.pos = (s.pos + 1) % len(s.items)
		item := s.items[s.pos]
		return &item, nil
	}
	item := s.items[s.pos]
	return &item, nil
}

// redditListing mirrors the subset of the listing JSON we consume.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	SelfText    string `json:"selftext"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	Subreddit   string `json:"subreddit"`
	Permalink   string `json:"permalink"`
	Stickied    bool   `json:"stickied"`
}

// refreshLocked fetches a fresh listing page and resets the position.
// Callers must hold s.mu.
func (s *RedditSource) refreshLocked(ctx context.Context) error {
	url := fmt.Sprintf("%s/r/%s.json?limit=%d&raw_json=1", s.baseURL, s.category, listingLimit)
	slog.Debug("RedditSource.refresh: fetching listing", "category", s.category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrContextSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrContextSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: listing returned status %d", models.ErrContextSourceUnavailable, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("%w: failed to decode listing: %v", models.ErrContextSourceUnavailable, err)
	}

	items := make([]models.ContextItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Title == "" {
			continue
		}
		items = append(items, models.ContextItem{
			URL:          s.baseURL + post.Permalink,
			Author:       post.Author,
			Title:        post.Title,
			Body:         post.SelfText,
			Score:        post.Score,
			CommentCount: post.NumComments,
			Community:    post.Subreddit,
		})
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: listing contained no usable posts", models.ErrContextSourceUnavailable)
	}

	s.items = items
	s.pos = 0
	slog.Debug("RedditSource.refresh: listing loaded", "count", len(items), "category", s.category)
	return nil
}
