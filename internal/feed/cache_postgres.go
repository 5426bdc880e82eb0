// Package feed provides the shared display-feed sources for DuetLoop.
//
// This file implements the PostgreSQL-backed feed item cache.
package feed

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/duetloop/duetloop/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresItemStore persists feed items in a PostgreSQL database.
type PostgresItemStore struct {
	db *sql.DB
}

// NewPostgresItemStore creates a new PostgreSQL item store with the given DSN.
func NewPostgresItemStore(dsn string) (*PostgresItemStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("NewPostgresItemStore: failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("NewPostgresItemStore: PostgreSQL ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("NewPostgresItemStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("NewPostgresItemStore: store ready")

	return &PostgresItemStore{db: db}, nil
}

// SaveItem inserts or refreshes one feed item keyed by URL.
func (s *PostgresItemStore) SaveItem(item models.ContextItem) error {
	_, err := s.db.Exec(`INSERT INTO feed_items (url, author, title, body, score, comment_count, community)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url) DO UPDATE SET
			author = EXCLUDED.author,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			score = EXCLUDED.score,
			comment_count = EXCLUDED.comment_count,
			community = EXCLUDED.community,
			fetched_at = NOW()`,
		item.URL, item.Author, item.Title, item.Body, item.Score, item.CommentCount, item.Community)
	if err != nil {
		return fmt.Errorf("failed to save feed item %s: %w", item.URL, err)
	}
	return nil
}

// ListItems returns up to limit cached items in insertion order.
func (s *PostgresItemStore) ListItems(limit int) ([]models.ContextItem, error) {
	rows, err := s.db.Query(`SELECT url, author, title, body, score, comment_count, community
		FROM feed_items ORDER BY id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed items: %w", err)
	}
	defer rows.Close()

	var items []models.ContextItem
	for rows.Next() {
		var item models.ContextItem
		if err := rows.Scan(&item.URL, &item.Author, &item.Title, &item.Body, &item.Score, &item.CommentCount, &item.Community); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the database connection.
func (s *PostgresItemStore) Close() error {
	return s.db.Close()
}
