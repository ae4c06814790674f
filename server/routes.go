/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the routing table for the whole service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", instrument("/webhook", s.handleWebhook))
	mux.HandleFunc("POST /v1/analyze", instrument("/v1/analyze", s.handleAnalyze))

	mux.HandleFunc("GET /v1/rules", instrument("/v1/rules", s.handleListRules))
	mux.HandleFunc("POST /v1/rules", instrument("/v1/rules", s.handleCreateRule))
	mux.HandleFunc("PUT /v1/rules/{id}", instrument("/v1/rules/{id}", s.handleUpdateRule))
	mux.HandleFunc("DELETE /v1/rules/{id}", instrument("/v1/rules/{id}", s.handleDeleteRule))

	mux.HandleFunc("POST /v1/chat", instrument("/v1/chat", s.handleChat))
	mux.HandleFunc("GET /v1/chat/sessions/{user}", instrument("/v1/chat/sessions/{user}", s.handleListSessions))
	mux.HandleFunc("GET /v1/chat/sessions/{id}/messages", instrument("/v1/chat/sessions/{id}/messages", s.handleListMessages))
	mux.HandleFunc("DELETE /v1/chat/sessions/{id}", instrument("/v1/chat/sessions/{id}", s.handleDeleteSession))

	mux.HandleFunc("GET /repos", instrument("/repos", s.handleListRepos))
	mux.HandleFunc("GET /repos/{owner}/{repo}/pull-requests", instrument("/repos/{owner}/{repo}/pull-requests", s.handleListRepoPRs))
	mux.HandleFunc("GET /repos/{owner}/{repo}/prs/{number}", instrument("/repos/{owner}/{repo}/prs/{number}", s.handlePRDetail))

	mux.HandleFunc("GET /login/github", instrument("/login/github", s.handleLogin))
	mux.HandleFunc("GET /auth/github/callback", instrument("/auth/github/callback", s.handleOAuthCallback))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
