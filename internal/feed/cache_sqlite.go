// Package feed provides the shared display-feed sources for DuetLoop.
//
// This file implements the SQLite-backed feed item cache.
package feed

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/duetloop/duetloop/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteItemStore persists feed items in an SQLite database file.
type SQLiteItemStore struct {
	db *sql.DB
}

// NewSQLiteItemStore creates a new SQLite item store with the given DSN.
// The DSN is a file path; the containing directory is created if needed.
func NewSQLiteItemStore(dsn string) (*SQLiteItemStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("NewSQLiteItemStore: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("NewSQLiteItemStore: failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("NewSQLiteItemStore: SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("NewSQLiteItemStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("NewSQLiteItemStore: store ready", "path", dsn)

	return &SQLiteItemStore{db: db}, nil
}

// SaveItem inserts or refreshes one feed item keyed by URL.
func (s *SQLiteItemStore) SaveItem(item models.ContextItem) error {
	_, err := s.db.Exec(`INSERT INTO feed_items (url, author, title, body, score, comment_count, community)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			author = excluded.author,
			title = excluded.title,
			body = excluded.body,
			score = excluded.score,
			comment_count = excluded.comment_count,
			community = excluded.community,
			fetched_at = CURRENT_TIMESTAMP`,
		item.URL, item.Author, item.Title, item.Body, item.Score, item.CommentCount, item.Community)
	if err != nil {
		return fmt.Errorf("failed to save feed item %s: %w", item.URL, err)
	}
	return nil
}

// ListItems returns up to limit cached items in insertion order.
func (s *SQLiteItemStore) ListItems(limit int) ([]models.ContextItem, error) {
	rows, err := s.db.Query(`SELECT url, author, title, body, score, comment_count, community
		FROM feed_items ORDER BY id ASC LIMIT ?`, limit)
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
func (s *SQLiteItemStore) Close() error {
	return s.db.Close()
}
