/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package chat orchestrates rule-management conversations: it maintains
// session transcripts, asks the completion capability for a reply, and runs
// the interpret-then-apply mutation pipeline on every user message.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/reviewloop/reviewloop/llm"
	"github.com/reviewloop/reviewloop/mutation"
	"github.com/reviewloop/reviewloop/rules"
	"github.com/reviewloop/reviewloop/store"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 1000

	// historyWindow caps how many prior turns accompany the new user message
	// on a completion call.
	historyWindow = 10

	// replyFallback is the assistant reply when the completion capability
	// fails; the turn is still persisted.
	replyFallback = "I apologize, but I'm experiencing technical difficulties. Please try again later."

	// newSessionGreeting is returned for the explicit new-session handshake,
	// which creates the session without persisting an opening message.
	newSessionGreeting = "Hello! I'm ready to help you with rule management and code review questions."
)

// Request is one inbound chat message.
type Request struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id"`
	Context   map[string]any `json:"context,omitempty"`
}

// Response is the composed assistant reply.
type Response struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Orchestrator wires the chat surface together. All collaborators are
// injected at construction and shared across concurrent requests.
type Orchestrator struct {
	store       *store.Store
	rules       *rules.Store
	client      llm.Client
	interpreter *mutation.Interpreter
	applier     *mutation.Applier
}

// NewOrchestrator constructs the orchestrator from its collaborators.
func NewOrchestrator(st *store.Store, ruleStore *rules.Store, client llm.Client, interpreter *mutation.Interpreter, applier *mutation.Applier) *Orchestrator {
	return &Orchestrator{
		store:       st,
		rules:       ruleStore,
		client:      client,
		interpreter: interpreter,
		applier:     applier,
	}
}

// HandleTurn processes one user message: it ensures a session exists, gets a
// natural-language reply from the model, independently interprets the raw
// user message for rule mutations, applies them, appends one status line per
// action to the reply, and persists both turns.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (Response, error) {
	log := clog.FromContext(ctx).With("user_id", req.UserID)

	sessionID := req.SessionID
	if sessionID == "" {
		id, err := o.store.CreateSession(ctx, req.UserID, "")
		if err != nil {
			return Response{}, fmt.Errorf("creating session: %w", err)
		}
		sessionID = id
		log.With("session_id", sessionID).Info("Created chat session")
	} else {
		exists, err := o.store.SessionExists(ctx, sessionID)
		if err != nil {
			return Response{}, fmt.Errorf("checking session: %w", err)
		}
		if !exists {
			return Response{}, fmt.Errorf("%w: session %q", store.ErrNotFound, sessionID)
		}
	}

	ruleset, err := o.rules.Load()
	if err != nil {
		return Response{}, fmt.Errorf("loading rules: %w", err)
	}
	metadata := map[string]any{"rules_accessed": len(ruleset)}

	// The new-session handshake just opens the session; no turns are stored.
	if action, _ := req.Context["action"].(string); action == "new_session" {
		return Response{Message: newSessionGreeting, SessionID: sessionID, Metadata: metadata}, nil
	}

	if err := o.store.AddMessage(ctx, sessionID, "user", req.Message, req.Context); err != nil {
		return Response{}, fmt.Errorf("persisting user turn: %w", err)
	}

	history, err := o.store.ListMessages(ctx, sessionID)
	if err != nil {
		return Response{}, fmt.Errorf("loading history: %w", err)
	}

	reply := o.completeReply(ctx, ruleset, history)

	// Interpretation runs on the raw user message, not the model's reply,
	// against the same rule snapshot the reply saw.
	actions := o.interpreter.Interpret(ctx, req.Message, ruleset)
	if len(actions) > 0 {
		results := o.applier.Apply(ctx, actions)
		lines := make([]string, 0, len(results))
		for _, r := range results {
			lines = append(lines, r.StatusLine())
		}
		reply += "\n\n" + strings.Join(lines, "\n")
	}

	if err := o.store.AddMessage(ctx, sessionID, "assistant", reply, metadata); err != nil {
		return Response{}, fmt.Errorf("persisting assistant turn: %w", err)
	}

	return Response{Message: reply, SessionID: sessionID, Metadata: metadata}, nil
}

// completeReply asks the model for the conversational reply, degrading to a
// fixed fallback on any completion failure.
func (o *Orchestrator) completeReply(ctx context.Context, ruleset []rules.Rule, history []store.ChatMessage) string {
	// history already ends with the new user message; the model sees it plus
	// the last historyWindow prior turns.
	if n := len(history); n > historyWindow+1 {
		history = history[n-historyWindow-1:]
	}
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := o.client.Complete(ctx, llm.Request{
		System:      systemPrompt(ruleset),
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Warn("Chat completion failed, using fallback reply")
		return replyFallback
	}
	return strings.TrimSpace(reply)
}
