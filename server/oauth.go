/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

// handleLogin redirects the browser to the GitHub authorize page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.oauth.LoginURL(uuid.NewString()), http.StatusTemporaryRedirect)
}

// handleOAuthCallback trades the authorization code for an access token,
// fetches the user's profile, and redirects to the dashboard with the token
// and the base64url-encoded profile in the query string.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "code is required")
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Error("OAuth code exchange failed")
		writeError(r.Context(), w, http.StatusBadGateway, "Failed to get access token")
		return
	}

	user, err := s.oauth.FetchUser(ctx, token)
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Error("Fetching user profile failed")
		writeError(r.Context(), w, http.StatusBadGateway, "Failed to fetch user profile")
		return
	}

	profile, err := json.Marshal(user)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to encode user profile")
		return
	}
	encoded := base64.URLEncoding.EncodeToString(profile)

	redirect := fmt.Sprintf("%s/dashboard?token=%s&user=%s",
		s.frontendURL, url.QueryEscape(token), url.QueryEscape(encoded))
	clog.FromContext(ctx).With("user", user.Login).Info("Dashboard login completed")
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}
