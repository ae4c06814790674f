/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"

	"github.com/reviewloop/reviewloop/chat"
	"github.com/reviewloop/reviewloop/store"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := s.orchestrator.HandleTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "Session not found")
			return
		}
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Chat turn failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Chat error")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), r.PathValue("user"))
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Listing sessions failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Error fetching sessions")
		return
	}
	if sessions == nil {
		sessions = []store.ChatSession{}
	}
	writeJSON(r.Context(), w, http.StatusOK, sessions)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Listing messages failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Error fetching messages")
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	writeJSON(r.Context(), w, http.StatusOK, messages)
}

// handleDeleteSession deletes a session for the user named in the user_id
// query parameter. A session owned by someone else reads as not found.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "user_id is required")
		return
	}
	deleted, err := s.store.DeleteSession(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Deleting session failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Error deleting session")
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}
