/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"

	"github.com/reviewloop/reviewloop/rules"
)

// rulesResponse is the collection envelope for GET /v1/rules.
type rulesResponse struct {
	Rules []rules.Rule `json:"rules"`
	Total int          `json:"total"`
}

// ruleEnvelope wraps a rule for create and update request bodies.
type ruleEnvelope struct {
	Rule rules.Rule `json:"rule"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	ruleset, err := s.rules.Load()
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Loading rules failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Error fetching rules")
		return
	}
	if ruleset == nil {
		ruleset = []rules.Rule{}
	}
	writeJSON(r.Context(), w, http.StatusOK, rulesResponse{Rules: ruleset, Total: len(ruleset)})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleEnvelope
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rules.Create(req.Rule); err != nil {
		switch {
		case errors.Is(err, rules.ErrRuleExists):
			writeError(r.Context(), w, http.StatusConflict, err.Error())
		case errors.Is(err, rules.ErrInvalidRule):
			writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		default:
			clog.FromContext(r.Context()).With("error", err.Error()).Error("Creating rule failed")
			writeError(r.Context(), w, http.StatusInternalServerError, "Error creating rule")
		}
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, req.Rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleEnvelope
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")
	if req.Rule.RuleID == "" {
		req.Rule.RuleID = id
	}
	if err := s.rules.Update(id, req.Rule); err != nil {
		switch {
		case errors.Is(err, rules.ErrRuleNotFound):
			writeError(r.Context(), w, http.StatusNotFound, "Rule not found")
		case errors.Is(err, rules.ErrInvalidRule):
			writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		default:
			clog.FromContext(r.Context()).With("error", err.Error()).Error("Updating rule failed")
			writeError(r.Context(), w, http.StatusInternalServerError, "Error updating rule")
		}
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, req.Rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.rules.Get(id); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "Rule not found")
			return
		}
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Reading rule failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Error deleting rule")
		return
	}
	if err := s.rules.Delete(id); err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Error("Deleting rule failed")
		writeError(r.Context(), w, http.StatusInternalServerError, "Error deleting rule")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"message": "Rule deleted successfully"})
}
