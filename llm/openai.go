/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiClient struct {
	client openai.Client
	model  string
	retry  retryConfig
}

func newOpenAIClient(model, apiKey string) *openaiClient {
	return &openaiClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		retry:  defaultRetryConfig(),
	}
}

// Complete implements Client using the Chat Completions API.
func (c *openaiClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	return completeWithRetry(ctx, c.retry, "openai", isOpenAIRetryable, func(ctx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

func isOpenAIRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
