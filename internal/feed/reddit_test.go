package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/duetloop/duetloop/internal/models"
)

func listingJSON(titles ...string) string {
	children := ""
	for i, title := range titles {
		if i > 0 {
			children += ","
		}
		children += fmt.Sprintf(`{"data": {"title": %q, "author": "author%d", "selftext": "body %d", "score": %d, "num_comments": %d, "subreddit": "golang", "permalink": "/r/golang/comments/%d/post/"}}`,
			title, i, i, 10*i, i, i)
	}
	return fmt.Sprintf(`{"data": {"children": [%s]}}`, children)
}

func TestRedditSourceFetchCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang.json" {
			t.Errorf("unexpected request path: %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, listingJSON("first post", "second post"))
	}))
	defer srv.Close()

	src := NewRedditSource(WithBaseURL(srv.URL), WithCategory("golang"))
	item, err := src.FetchCurrent(context.Background())
	if err != nil {
		t.Fatalf("FetchCurrent failed: %v", err)
	}
	if item.Title != "first post" {
		t.Errorf("expected first post, got %q", item.Title)
	}
	if item.Community != "golang" {
		t.Errorf("expected community golang, got %q", item.Community)
	}
	if item.URL != srv.URL+"/r/golang/comments/0/post/" {
		t.Errorf("unexpected item URL: %q", item.URL)
	}

	// A second fetch must not advance the position.
	again, err := src.FetchCurrent(context.Background())
	if err != nil {
		t.Fatalf("second FetchCurrent failed: %v", err)
	}
	if *again != *item {
		t.Errorf("expected stable current item, got %q then %q", item.Title, again.Title)
	}
}

func TestRedditSourceAdvanceWalksListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingJSON("one", "two"))
	}))
	defer srv.Close()

	src := NewRedditSource(WithBaseURL(srv.URL), WithCategory("golang"))
	ctx := context.Background()
	if _, err := src.FetchCurrent(ctx); err != nil {
		t.Fatalf("FetchCurrent failed: %v", err)
	}

	item, err := src.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if item.Title != "two" {
		t.Errorf("expected second post after advance, got %q", item.Title)
	}
}

func TestRedditSourceAdvanceRecyclesOnRefreshFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, listingJSON("only"))
	}))
	defer srv.Close()

	src := NewRedditSource(WithBaseURL(srv.URL), WithCategory("golang"))
	ctx := context.Background()
	if _, err := src.FetchCurrent(ctx); err != nil {
		t.Fatalf("FetchCurrent failed: %v", err)
	}

	// The one-item page is exhausted and the refetch fails; the source must
	// keep serving what it has rather than erroring out.
	item, err := src.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if item.Title != "only" {
		t.Errorf("expected recycled item, got %q", item.Title)
	}
}

func TestRedditSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewRedditSource(WithBaseURL(srv.URL))
	_, err := src.FetchCurrent(context.Background())
	if !errors.Is(err, models.ErrContextSourceUnavailable) {
		t.Errorf("expected ErrContextSourceUnavailable, got %v", err)
	}
}

func TestRedditSourceSkipsStickiedPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"children": [
			{"data": {"title": "pinned", "stickied": true, "permalink": "/p/1"}},
			{"data": {"title": "regular", "permalink": "/p/2", "subreddit": "golang"}}
		]}}`)
	}))
	defer srv.Close()

	src := NewRedditSource(WithBaseURL(srv.URL))
	item, err := src.FetchCurrent(context.Background())
	if err != nil {
		t.Fatalf("FetchCurrent failed: %v", err)
	}
	if item.Title != "regular" {
		t.Errorf("expected stickied post to be skipped, got %q", item.Title)
	}
}
