/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package githubapp is the source-control host adapter: GitHub App
// authentication, changeset retrieval, comment posting, and the OAuth login
// flow for the dashboard.
package githubapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v84/github"

	"github.com/reviewloop/reviewloop/changeset"
)

// Host talks to GitHub on behalf of an App installation. It is safe for
// concurrent use; installation transports are cached per installation id.
type Host struct {
	appID          int64
	privateKeyPath string

	baseTransport http.RoundTripper
	baseURL       string

	mu         sync.Mutex
	transports map[int64]*ghinstallation.Transport
}

// Option configures a Host.
type Option func(*Host)

// WithBaseURL points the host at a non-default GitHub API base URL. Used in
// tests and for GitHub Enterprise.
func WithBaseURL(url string) Option {
	return func(h *Host) {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		h.baseURL = url
	}
}

// WithTransport overrides the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(h *Host) { h.baseTransport = rt }
}

// NewHost returns a host authenticating as the given GitHub App.
func NewHost(appID int64, privateKeyPath string, opts ...Option) *Host {
	h := &Host{
		appID:          appID,
		privateKeyPath: privateKeyPath,
		baseTransport:  http.DefaultTransport,
		transports:     map[int64]*ghinstallation.Transport{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) transport(installationID int64) (*ghinstallation.Transport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tr, ok := h.transports[installationID]; ok {
		return tr, nil
	}
	tr, err := ghinstallation.NewKeyFromFile(h.baseTransport, h.appID, installationID, h.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}
	if h.baseURL != "" {
		tr.BaseURL = strings.TrimSuffix(h.baseURL, "/")
	}
	h.transports[installationID] = tr
	return tr, nil
}

// client returns a GitHub API client scoped to the installation.
func (h *Host) client(installationID int64) (*github.Client, error) {
	tr, err := h.transport(installationID)
	if err != nil {
		return nil, err
	}
	gh := github.NewClient(&http.Client{Transport: tr})
	if h.baseURL != "" {
		gh, err = gh.WithEnterpriseURLs(h.baseURL, h.baseURL)
		if err != nil {
			return nil, fmt.Errorf("setting API base URL: %w", err)
		}
	}
	return gh, nil
}

// InstallationToken mints a short-lived access token for the installation,
// signing the App JWT with the configured private key.
func (h *Host) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	tr, err := h.transport(installationID)
	if err != nil {
		return "", err
	}
	token, err := tr.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("minting installation token: %w", err)
	}
	return token, nil
}

// FetchChangeset retrieves the structured file list and the raw unified diff
// for a pull request.
func (h *Host) FetchChangeset(ctx context.Context, installationID int64, owner, repo string, number int) ([]changeset.FileChange, string, error) {
	gh, err := h.client(installationID)
	if err != nil {
		return nil, "", err
	}

	var files []changeset.FileChange
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, "", fmt.Errorf("fetching PR files: %w", err)
		}
		for _, f := range page {
			files = append(files, changeset.FileChange{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	diff, _, err := gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return nil, "", fmt.Errorf("fetching PR diff: %w", err)
	}
	return files, diff, nil
}

// PostComment posts a comment on the pull request's conversation thread.
func (h *Host) PostComment(ctx context.Context, installationID int64, owner, repo string, number int, body string) error {
	gh, err := h.client(installationID)
	if err != nil {
		return err
	}
	_, _, err = gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("posting PR comment: %w", err)
	}
	return nil
}
