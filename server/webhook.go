/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"github.com/reviewloop/reviewloop/review"
	"github.com/reviewloop/reviewloop/store"
)

// reviewedActions are the pull-request actions that trigger a review.
var reviewedActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// handleWebhook validates the delivery signature, runs the review pipeline
// for pull-request events, persists the result, and posts the review comment
// back to the pull request.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx)

	payload, err := github.ValidatePayload(r, s.webhookSecret)
	if err != nil {
		log.With("error", err.Error()).Warn("Webhook signature validation failed")
		webhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		writeError(r.Context(), w, http.StatusForbidden, "Invalid signature")
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pre, ok := event.(*github.PullRequestEvent)
	if !ok || pre.GetPullRequest() == nil || !reviewedActions[pre.GetAction()] {
		webhookEventsTotal.WithLabelValues("ignored").Inc()
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"msg": "Ignored event"})
		return
	}

	pr := pre.GetPullRequest()
	repo := pre.GetRepo()
	installationID := pre.GetInstallation().GetID()
	number := pre.GetNumber()
	owner := repo.GetOwner().GetLogin()
	name := repo.GetName()

	log = log.With(
		"repo", repo.GetFullName(),
		"pr", number,
		"action", pre.GetAction(),
		"installation_id", installationID)
	log.Info("Processing pull request event")

	files, diff, err := s.host.FetchChangeset(ctx, installationID, owner, name, number)
	if err != nil {
		log.With("error", err.Error()).Error("Fetching changeset failed")
		webhookEventsTotal.WithLabelValues("error").Inc()
		writeError(r.Context(), w, http.StatusBadGateway, "Failed to fetch pull request changeset")
		return
	}

	result, err := s.analyzer.Analyze(ctx, review.Request{
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		Diff:         diff,
		Files:        files,
		RepoFullName: repo.GetFullName(),
		PRNumber:     number,
	})
	if err != nil {
		log.With("error", err.Error()).Error("Analyzing pull request failed")
		webhookEventsTotal.WithLabelValues("error").Inc()
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to analyze pull request")
		return
	}

	if err := s.store.UpsertPRSummary(ctx, store.PRSummary{
		RepoFullName: repo.GetFullName(),
		PRNumber:     number,
		PRURL:        pr.GetHTMLURL(),
		Title:        pr.GetTitle(),
		AuthorLogin:  pr.GetUser().GetLogin(),
		IsMerged:     pr.GetMerged(),
		CommitsCount: pr.GetCommits(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Violations:   result.Violations,
		SummaryText:  result.Summary,
	}); err != nil {
		log.With("error", err.Error()).Error("Persisting review failed")
		webhookEventsTotal.WithLabelValues("error").Inc()
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to persist review")
		return
	}

	body := review.FormatComment(result.Summary, result.Violations)
	if err := s.host.PostComment(ctx, installationID, owner, name, number, body); err != nil {
		log.With("error", err.Error()).Error("Posting review comment failed")
		webhookEventsTotal.WithLabelValues("error").Inc()
		writeError(r.Context(), w, http.StatusBadGateway, "Failed to post review comment")
		return
	}

	log.With("violations", len(result.Violations)).Info("Pull request reviewed")
	webhookEventsTotal.WithLabelValues("processed").Inc()
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"msg": "Webhook processed"})
}

// handleAnalyze runs the review pipeline on a caller-supplied changeset with
// no persistence or comment side effects.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req review.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Analyze failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to analyze changeset")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, resp)
}
