/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// retryConfig bounds the backoff loop for transient completion-API errors.
// Quota errors often need longer than typical transport retries to clear.
type retryConfig struct {
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxJitter   time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:  3,
		baseBackoff: time.Second,
		maxBackoff:  15 * time.Second,
		maxJitter:   500 * time.Millisecond,
	}
}

// completeWithRetry runs fn with exponential backoff, retrying only errors
// the provider classifies as retryable (rate limits, transient 5xx).
func completeWithRetry(ctx context.Context, cfg retryConfig, provider string, isRetryable func(error) bool, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt >= cfg.maxRetries {
			break
		}

		backoff := min(cfg.baseBackoff<<attempt, cfg.maxBackoff)
		if cfg.maxJitter > 0 {
			if n, jerr := rand.Int(rand.Reader, big.NewInt(int64(cfg.maxJitter))); jerr == nil {
				backoff += time.Duration(n.Int64())
			}
		}

		clog.FromContext(ctx).With("provider", provider).
			With("attempt", attempt+1).
			With("backoff", backoff).
			With("error", err.Error()).
			Warn("Transient completion error, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("%s completion failed: %w", provider, lastErr)
}
