/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package server exposes the HTTP surface: the GitHub webhook, the rule and
// chat APIs, the stateless analyze endpoint, and the OAuth login flow.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/clog"

	"github.com/reviewloop/reviewloop/changeset"
	"github.com/reviewloop/reviewloop/chat"
	"github.com/reviewloop/reviewloop/githubapp"
	"github.com/reviewloop/reviewloop/review"
	"github.com/reviewloop/reviewloop/rules"
	"github.com/reviewloop/reviewloop/store"
)

// Host is the subset of the source-control host the server needs.
type Host interface {
	FetchChangeset(ctx context.Context, installationID int64, owner, repo string, number int) ([]changeset.FileChange, string, error)
	PostComment(ctx context.Context, installationID int64, owner, repo string, number int, body string) error
}

// Config carries the server's collaborators and settings.
type Config struct {
	Host          Host
	OAuth         *githubapp.OAuth
	Analyzer      *review.Analyzer
	Orchestrator  *chat.Orchestrator
	Rules         *rules.Store
	Store         *store.Store
	WebhookSecret string
	FrontendURL   string
}

// Server handles all inbound HTTP traffic.
type Server struct {
	host          Host
	oauth         *githubapp.OAuth
	analyzer      *review.Analyzer
	orchestrator  *chat.Orchestrator
	rules         *rules.Store
	store         *store.Store
	webhookSecret []byte
	frontendURL   string
}

// New constructs the server from its collaborators.
func New(cfg Config) *Server {
	return &Server{
		host:          cfg.Host,
		oauth:         cfg.OAuth,
		analyzer:      cfg.Analyzer,
		orchestrator:  cfg.Orchestrator,
		rules:         cfg.Rules,
		store:         cfg.Store,
		webhookSecret: []byte(cfg.WebhookSecret),
		frontendURL:   cfg.FrontendURL,
	}
}

// decodeJSON decodes the request body, rejecting fields the API does not
// define.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Error("Encoding response failed")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	writeJSON(ctx, w, code, map[string]string{"error": msg})
}
