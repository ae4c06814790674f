/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"github.com/reviewloop/reviewloop/rules"
	"github.com/reviewloop/reviewloop/store"
)

// The dashboard read endpoints act on behalf of a logged-in user: the OAuth
// access token from the login flow arrives as a bearer token and is passed
// straight through to GitHub.

type repoSummary struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	OpenPRs     int    `json:"open_prs"`
	LastUpdated string `json:"last_updated"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

type prListItem struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type prDetail struct {
	prListItem
	Summary     string            `json:"summary"`
	Violations  []rules.Violation `json:"violations"`
	Owner       string            `json:"owner"`
	LastUpdated string            `json:"last_updated"`
}

// userClient builds a GitHub client from the request's bearer token. A
// missing token reads as unauthorized.
func (s *Server) userClient(w http.ResponseWriter, r *http.Request) (*github.Client, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		writeError(r.Context(), w, http.StatusUnauthorized, "Authorization token is required")
		return nil, false
	}
	gh, err := s.oauth.APIClient(token)
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Building user client failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to reach GitHub")
		return nil, false
	}
	return gh, true
}

// upstreamStatus maps a go-github error to the status code GitHub returned,
// defaulting to 502 for transport failures.
func upstreamStatus(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return http.StatusBadGateway
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	gh, ok := s.userClient(w, r)
	if !ok {
		return
	}

	repos, _, err := gh.Repositories.ListByAuthenticatedUser(r.Context(), nil)
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Warn("Listing repositories failed")
		writeError(r.Context(), w, upstreamStatus(err), "Failed to list repositories")
		return
	}

	out := make([]repoSummary, 0, len(repos))
	for _, repo := range repos {
		out = append(out, repoSummary{
			Name:        repo.GetName(),
			FullName:    repo.GetFullName(),
			OpenPRs:     repo.GetOpenIssuesCount(),
			LastUpdated: repo.GetUpdatedAt().Format(timeLayout),
			Description: repo.GetDescription(),
			Private:     repo.GetPrivate(),
		})
	}
	writeJSON(r.Context(), w, http.StatusOK, out)
}

func (s *Server) handleListRepoPRs(w http.ResponseWriter, r *http.Request) {
	gh, ok := s.userClient(w, r)
	if !ok {
		return
	}
	owner, repo := r.PathValue("owner"), r.PathValue("repo")

	prs, _, err := gh.PullRequests.List(r.Context(), owner, repo, nil)
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Warn("Listing pull requests failed")
		writeError(r.Context(), w, upstreamStatus(err), "Failed to list pull requests")
		return
	}

	out := make([]prListItem, 0, len(prs))
	for _, pr := range prs {
		out = append(out, prItem(pr))
	}
	writeJSON(r.Context(), w, http.StatusOK, out)
}

// handlePRDetail joins the live GitHub pull request with the persisted
// analysis. A pull request the webhook has not reviewed yet comes back with
// an empty summary and no violations.
func (s *Server) handlePRDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gh, ok := s.userClient(w, r)
	if !ok {
		return
	}
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid pull request number")
		return
	}

	pr, _, err := gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Warn("Fetching pull request failed")
		writeError(ctx, w, upstreamStatus(err), "Failed to fetch pull request")
		return
	}

	detail := prDetail{
		prListItem:  prItem(pr),
		Violations:  []rules.Violation{},
		Owner:       pr.GetUser().GetLogin(),
		LastUpdated: pr.GetUpdatedAt().Format(timeLayout),
	}

	ps, err := s.store.GetPRSummary(ctx, owner+"/"+repo, number)
	switch {
	case err == nil:
		detail.Summary = ps.SummaryText
		if ps.Violations != nil {
			detail.Violations = ps.Violations
		}
	case errors.Is(err, store.ErrNotFound):
		// Not reviewed yet; the GitHub fields stand alone.
	default:
		clog.FromContext(ctx).With("error", err.Error()).Error("Reading persisted review failed")
		writeError(ctx, w, http.StatusInternalServerError, "Failed to read persisted review")
		return
	}

	writeJSON(ctx, w, http.StatusOK, detail)
}

const timeLayout = "2006-01-02T15:04:05Z"

func prItem(pr *github.PullRequest) prListItem {
	return prListItem{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		Status:    pr.GetState(),
		CreatedAt: pr.GetCreatedAt().Format(timeLayout),
		UpdatedAt: pr.GetUpdatedAt().Format(timeLayout),
	}
}
