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

	"github.com/reviewloop/reviewloop/rules"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PRSummary is the persisted review result for one pull request.
type PRSummary struct {
	RepoFullName string            `json:"repo_full_name"`
	PRNumber     int               `json:"pr_number"`
	PRURL        string            `json:"pr_url"`
	Title        string            `json:"title"`
	AuthorLogin  string            `json:"author_login"`
	IsMerged     bool              `json:"is_merged"`
	CommitsCount int               `json:"commits_count"`
	Additions    int               `json:"additions"`
	Deletions    int               `json:"deletions"`
	ChangedFiles int               `json:"changed_files"`
	Violations   []rules.Violation `json:"violations"`
	SummaryText  string            `json:"summary_text"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// UpsertPRSummary inserts or replaces the summary row for (repo, pr_number).
// Re-delivered webhook events for the same PR overwrite the previous row,
// which keeps webhook processing idempotent.
func (s *Store) UpsertPRSummary(ctx context.Context, ps PRSummary) error {
	violations, err := json.Marshal(ps.Violations)
	if err != nil {
		return fmt.Errorf("encoding violations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pr_summary (
			repo_full_name, pr_number, pr_url, title, author_login,
			is_merged, commits_count, additions, deletions, changed_files,
			violation_count, violations, summary_text, metrics_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_full_name, pr_number) DO UPDATE SET
			pr_url             = excluded.pr_url,
			title              = excluded.title,
			author_login       = excluded.author_login,
			is_merged          = excluded.is_merged,
			commits_count      = excluded.commits_count,
			additions          = excluded.additions,
			deletions          = excluded.deletions,
			changed_files      = excluded.changed_files,
			violation_count    = excluded.violation_count,
			violations         = excluded.violations,
			summary_text       = excluded.summary_text,
			metrics_updated_at = excluded.metrics_updated_at`,
		ps.RepoFullName, ps.PRNumber, ps.PRURL, ps.Title, ps.AuthorLogin,
		ps.IsMerged, ps.CommitsCount, ps.Additions, ps.Deletions, ps.ChangedFiles,
		len(ps.Violations), string(violations), ps.SummaryText,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting pr summary: %w", err)
	}
	return nil
}

// GetPRSummary returns the persisted summary for a pull request.
func (s *Store) GetPRSummary(ctx context.Context, repoFullName string, prNumber int) (PRSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT repo_full_name, pr_number, pr_url, title, author_login,
		       is_merged, commits_count, additions, deletions, changed_files,
		       violations, summary_text, metrics_updated_at
		FROM pr_summary WHERE repo_full_name = ? AND pr_number = ?`,
		repoFullName, prNumber)

	var ps PRSummary
	var violations, updatedAt string
	err := row.Scan(
		&ps.RepoFullName, &ps.PRNumber, &ps.PRURL, &ps.Title, &ps.AuthorLogin,
		&ps.IsMerged, &ps.CommitsCount, &ps.Additions, &ps.Deletions, &ps.ChangedFiles,
		&violations, &ps.SummaryText, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PRSummary{}, fmt.Errorf("%w: %s#%d", ErrNotFound, repoFullName, prNumber)
	}
	if err != nil {
		return PRSummary{}, fmt.Errorf("reading pr summary: %w", err)
	}
	if err := json.Unmarshal([]byte(violations), &ps.Violations); err != nil {
		return PRSummary{}, fmt.Errorf("decoding violations: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		ps.UpdatedAt = t
	}
	return ps, nil
}
