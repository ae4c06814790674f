/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package llm wraps the text-completion providers behind a single
// prompt-in/text-out client. Callers must treat the capability as fallible
// and untrusted: transport and quota errors are returned as plain errors so
// each call site can degrade to its own fallback value.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// callTimeout is the conservative outer bound on a single completion call.
const callTimeout = 30 * time.Second

// Message is one turn of a conversation sent to the completion capability.
type Message struct {
	Role    string
	Content string
}

// Request describes a single completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int64
}

// Client is the completion capability.
type Client interface {
	// Complete returns the model's text response for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// Config carries provider credentials. Only the key for the selected
// provider needs to be set.
type Config struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// New returns a client for the given model name. The provider is selected by
// model-name prefix:
//   - claude-* uses the Anthropic SDK
//   - everything else (gpt-*, o*, ...) uses the OpenAI SDK
func New(model string, cfg Config) (Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if strings.HasPrefix(strings.ToLower(model), "claude-") {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s requires an Anthropic API key", model)
		}
		return newAnthropicClient(model, cfg.AnthropicAPIKey), nil
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("model %s requires an OpenAI API key", model)
	}
	return newOpenAIClient(model, cfg.OpenAIAPIKey), nil
}

func withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, callTimeout)
}
