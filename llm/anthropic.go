/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicMaxTokensDefault applies when the request does not cap output;
// the Messages API requires an explicit maximum.
const anthropicMaxTokensDefault = 1024

type anthropicClient struct {
	client anthropic.Client
	model  string
	retry  retryConfig
}

func newAnthropicClient(model, apiKey string) *anthropicClient {
	return &anthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		retry:  defaultRetryConfig(),
	}
}

// Complete implements Client using the Messages API.
func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("completion request has no messages")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokensDefault
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return completeWithRetry(ctx, c.retry, "anthropic", isAnthropicRetryable, func(ctx context.Context) (string, error) {
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	})
}

func isAnthropicRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode == 529 || apiErr.StatusCode >= 500
	}
	return false
}
