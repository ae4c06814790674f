/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatSession is one conversation thread owned by a user.
type ChatSession struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	SessionName   string     `json:"session_name"`
	CreatedAt     time.Time  `json:"created_at"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// ChatMessage is one turn in a session. Turns are append-only: they are
// never updated, only added or removed with their whole session.
type ChatMessage struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateSession creates a new chat session and returns its id. An empty
// session name gets a timestamp-derived default.
func (s *Store) CreateSession(ctx context.Context, userID, sessionName string) (string, error) {
	if sessionName == "" {
		sessionName = "Chat " + time.Now().Format("2006-01-02 15:04")
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, session_name, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, sessionName, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("creating chat session: %w", err)
	}
	return id, nil
}

// SessionExists reports whether the session id is present.
func (s *Store) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chat_sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking chat session: %w", err)
	}
	return true, nil
}

// AddMessage appends a turn to a session.
func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error {
	var meta sql.NullString
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encoding message metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, role, content, meta, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("appending chat message: %w", err)
	}
	return nil
}

// ListSessions returns a user's sessions, newest first, with message counts
// and last-activity timestamps.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cs.id, cs.user_id, cs.session_name, cs.created_at,
		       COUNT(cm.id), MAX(cm.created_at)
		FROM chat_sessions cs
		LEFT JOIN chat_messages cm ON cs.id = cm.session_id
		WHERE cs.user_id = ?
		GROUP BY cs.id, cs.user_id, cs.session_name, cs.created_at
		ORDER BY cs.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		var cs ChatSession
		var createdAt string
		var lastMessageAt sql.NullString
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.SessionName, &createdAt, &cs.MessageCount, &lastMessageAt); err != nil {
			return nil, fmt.Errorf("scanning chat session: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			cs.CreatedAt = t
		}
		if lastMessageAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, lastMessageAt.String); err == nil {
				cs.LastMessageAt = &t
			}
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

// ListMessages returns a session's turns in chronological order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var cm ChatMessage
		var meta sql.NullString
		var createdAt string
		if err := rows.Scan(&cm.ID, &cm.SessionID, &cm.Role, &cm.Content, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &cm.Metadata); err != nil {
				return nil, fmt.Errorf("decoding message metadata: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			cm.CreatedAt = t
		}
		messages = append(messages, cm)
	}
	return messages, rows.Err()
}

// DeleteSession removes a session and its messages, scoped to the owning
// user. It reports false when no session was deleted, either because the id
// does not exist or because it belongs to someone else.
func (s *Store) DeleteSession(ctx context.Context, sessionID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("deleting chat session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting chat session: %w", err)
	}
	return n > 0, nil
}
