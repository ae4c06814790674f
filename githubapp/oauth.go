/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package githubapp

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

// User is the subset of the GitHub profile the dashboard needs.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	URL   string `json:"url"`
}

// OAuth implements the GitHub OAuth web flow for dashboard logins.
type OAuth struct {
	cfg     *oauth2.Config
	baseURL string
}

// NewOAuth builds the flow for the given OAuth app credentials.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read:user", "user:email", "repo"},
		Endpoint:     oauthgithub.Endpoint,
	}}
}

// SetEndpoints overrides the authorize/token/API URLs. Used in tests.
func (o *OAuth) SetEndpoints(authURL, tokenURL, apiBaseURL string) {
	o.cfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	o.baseURL = apiBaseURL
}

// LoginURL returns the GitHub authorize URL to redirect the browser to.
func (o *OAuth) LoginURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

// Exchange trades the callback code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	token, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging oauth code: %w", err)
	}
	return token.AccessToken, nil
}

// APIClient returns a GitHub API client authenticated with a user's OAuth
// access token.
func (o *OAuth) APIClient(accessToken string) (*gogithub.Client, error) {
	gh := gogithub.NewClient(nil).WithAuthToken(accessToken)
	if o.baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("setting API base URL: %w", err)
		}
	}
	return gh, nil
}

// FetchUser returns the authenticated user's profile.
func (o *OAuth) FetchUser(ctx context.Context, accessToken string) (User, error) {
	gh, err := o.APIClient(accessToken)
	if err != nil {
		return User{}, err
	}
	u, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return User{}, fmt.Errorf("fetching user profile: %w", err)
	}
	return User{
		Login: u.GetLogin(),
		ID:    u.GetID(),
		URL:   u.GetHTMLURL(),
	}, nil
}
