/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the review assistant: the GitHub webhook receiver, the
// rule and chat APIs, and the dashboard OAuth flow in one HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"

	"github.com/reviewloop/reviewloop/chat"
	"github.com/reviewloop/reviewloop/githubapp"
	"github.com/reviewloop/reviewloop/llm"
	"github.com/reviewloop/reviewloop/mutation"
	"github.com/reviewloop/reviewloop/review"
	"github.com/reviewloop/reviewloop/rules"
	"github.com/reviewloop/reviewloop/server"
	"github.com/reviewloop/reviewloop/store"
)

type config struct {
	Port int `env:"PORT,default=8080"`

	RulesPath string `env:"RULES_PATH,default=rules.yaml"`
	DBPath    string `env:"DB_PATH,default=reviewloop.db"`

	// GitHub App credentials for webhook processing.
	WebhookSecret  string `env:"WEBHOOK_SECRET,required"`
	AppID          int64  `env:"APP_ID,required"`
	PrivateKeyPath string `env:"PRIVATE_KEY_PATH,required"`

	// Completion provider. The model prefix selects the provider.
	Model           string `env:"LLM_MODEL,default=gpt-4o-mini"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// OAuth app credentials for dashboard logins.
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string `env:"GITHUB_REDIRECT_URI"`
	FrontendURL        string `env:"FRONTEND_URL,default=http://localhost:3000"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	client, err := llm.New(cfg.Model, llm.Config{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		clog.FatalContextf(ctx, "creating completion client: %v", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		clog.FatalContextf(ctx, "opening database: %v", err)
	}
	defer st.Close()

	ruleStore := rules.NewStore(cfg.RulesPath)
	host := githubapp.NewHost(cfg.AppID, cfg.PrivateKeyPath)

	srv := server.New(server.Config{
		Host:          host,
		OAuth:         githubapp.NewOAuth(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURI),
		Analyzer:      review.NewAnalyzer(ruleStore, client),
		Orchestrator:  chat.NewOrchestrator(st, ruleStore, client, mutation.NewInterpreter(client), mutation.NewApplier(ruleStore)),
		Rules:         ruleStore,
		Store:         st,
		WebhookSecret: cfg.WebhookSecret,
		FrontendURL:   cfg.FrontendURL,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			clog.ErrorContextf(shutdownCtx, "shutting down: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "Starting review assistant on port %d (model %s)", cfg.Port, cfg.Model)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}
