/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package review evaluates a pull request: declarative rule checks plus an
// LLM-written summary, and the markdown comment that reports both.
package review

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/reviewloop/reviewloop/changeset"
	"github.com/reviewloop/reviewloop/llm"
	"github.com/reviewloop/reviewloop/rules"
)

const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 1000

	// summaryFallback is returned when the completion capability fails; the
	// rule checks still stand on their own.
	summaryFallback = "Summary unavailable due to LLM error."
)

// Request carries everything needed to analyze one changeset.
type Request struct {
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Diff         string                 `json:"diff"`
	Files        []changeset.FileChange `json:"files"`
	RepoFullName string                 `json:"repo_full_name"`
	PRNumber     int                    `json:"pr_number"`
}

// Response is the analysis result.
type Response struct {
	Summary    string            `json:"summary"`
	Violations []rules.Violation `json:"rule_violations"`
}

// Analyzer runs rule evaluation and diff summarization. It is stateless:
// analyzing has no persistence side effects of its own.
type Analyzer struct {
	rules  *rules.Store
	client llm.Client
}

// NewAnalyzer returns an analyzer over the given rule store and completion
// client.
func NewAnalyzer(ruleStore *rules.Store, client llm.Client) *Analyzer {
	return &Analyzer{rules: ruleStore, client: client}
}

// Analyze evaluates the current ruleset against the changeset and asks the
// model for a summary. A completion failure degrades to a fixed fallback
// summary rather than failing the request.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Response, error) {
	files := req.Files
	if len(files) == 0 && req.Diff != "" {
		parsed, err := changeset.ParseDiff(req.Diff)
		if err != nil {
			return Response{}, fmt.Errorf("deriving changeset from diff: %w", err)
		}
		files = parsed
	}

	ruleset, err := a.rules.Load()
	if err != nil {
		return Response{}, fmt.Errorf("loading rules: %w", err)
	}
	violations := rules.Evaluate(files, ruleset)

	summary, err := a.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    "user",
			Content: summaryPrompt(req.Title, req.Description, req.Diff),
		}},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Warn("Summary generation failed, using fallback")
		summary = summaryFallback
	}

	return Response{Summary: summary, Violations: violations}, nil
}

func summaryPrompt(title, description, diff string) string {
	return fmt.Sprintf(`Act as a Staff Engineer and write a **concise, point-wise** PR summary (5-7 bullets) that gives enough context without fluff:

Title: %s
Description: %s

- **Goal:** One-line description of the problem or feature
- **Key Changes:** List the main modules/files and what was added or modified
- **Impact:** Note architecture, performance, or backward-compatibility effects
- **Risks/Edge Cases:** Highlight any potential pitfalls or security concerns
- **Testing:** Briefly state what tests were added or need manual validation

Use clear, professional language and keep it short—just enough detail for reviewers to understand the scope and importance.

--- BEGIN DIFF ---
%s
--- END DIFF ---
`, title, description, diff)
}
