/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package store is the persistence adapter for PR summaries and chat
// transcripts, backed by SQLite via the pure-Go modernc driver.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pr_summary (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_full_name        TEXT NOT NULL,
	pr_number             INTEGER NOT NULL,
	pr_url                TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	author_login          TEXT NOT NULL DEFAULT '',
	is_merged             INTEGER NOT NULL DEFAULT 0,
	commits_count         INTEGER NOT NULL DEFAULT 0,
	additions             INTEGER NOT NULL DEFAULT 0,
	deletions             INTEGER NOT NULL DEFAULT 0,
	changed_files         INTEGER NOT NULL DEFAULT 0,
	violation_count       INTEGER NOT NULL DEFAULT 0,
	violations            TEXT NOT NULL DEFAULT '[]',
	summary_text          TEXT NOT NULL DEFAULT '',
	metrics_updated_at    TEXT NOT NULL DEFAULT '',
	UNIQUE (repo_full_name, pr_number)
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	session_name TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id);
`

// Store wraps the database handle. It is created once at process start,
// shared across concurrent requests, and closed once at shutdown.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
