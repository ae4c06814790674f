/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reviewloop/reviewloop/changeset"
	"github.com/reviewloop/reviewloop/chat"
	"github.com/reviewloop/reviewloop/githubapp"
	"github.com/reviewloop/reviewloop/llm"
	"github.com/reviewloop/reviewloop/mutation"
	"github.com/reviewloop/reviewloop/review"
	"github.com/reviewloop/reviewloop/rules"
	"github.com/reviewloop/reviewloop/store"
)

const testWebhookSecret = "hush"

type fakeHost struct {
	files    []changeset.FileChange
	diff     string
	fetchErr error
	postErr  error
	comments []string
}

func (f *fakeHost) FetchChangeset(context.Context, int64, string, string, int) ([]changeset.FileChange, string, error) {
	return f.files, f.diff, f.fetchErr
}

func (f *fakeHost) PostComment(_ context.Context, _ int64, _, _ string, _ int, body string) error {
	if f.postErr != nil {
		return f.postErr
	}
	f.comments = append(f.comments, body)
	return nil
}

// fakeLLM answers the interpretation prompt with an empty action list and
// everything else with a fixed summary.
type fakeLLM struct{}

func (fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "rule management interpreter") {
		return "[]", nil
	}
	return "- Adds a secrets file", nil
}

func newTestServer(t *testing.T, host *fakeHost) (*Server, *store.Store, *rules.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "reviewloop.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ruleStore := rules.NewStore(filepath.Join(t.TempDir(), "rules.yaml"))
	seed := []rules.Rule{
		{RuleID: "no_env", Kind: rules.KindEquals, Match: ".env", Reason: "Do not commit .env files"},
		{RuleID: "max_file_limit", Kind: rules.KindGlobal, Threshold: 20, Reason: "Too many files"},
	}
	if err := ruleStore.Save(seed); err != nil {
		t.Fatalf("seeding rules: %v", err)
	}

	client := fakeLLM{}
	srv := New(Config{
		Host:          host,
		Analyzer:      review.NewAnalyzer(ruleStore, client),
		Orchestrator:  chat.NewOrchestrator(st, ruleStore, client, mutation.NewInterpreter(client), mutation.NewApplier(ruleStore)),
		Rules:         ruleStore,
		Store:         st,
		WebhookSecret: testWebhookSecret,
		FrontendURL:   "http://localhost:3000",
	})
	return srv, st, ruleStore
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pullRequestPayload(action string) []byte {
	payload := map[string]any{
		"action": action,
		"number": 5,
		"pull_request": map[string]any{
			"number":        5,
			"title":         "Add config",
			"body":          "Adds configuration handling",
			"html_url":      "https://github.com/octo/widgets/pull/5",
			"user":          map[string]any{"login": "octocat"},
			"merged":        false,
			"commits":       2,
			"additions":     12,
			"deletions":     3,
			"changed_files": 2,
		},
		"repository": map[string]any{
			"name":      "widgets",
			"full_name": "octo/widgets",
			"owner":     map[string]any{"login": "octo"},
		},
		"installation": map[string]any{"id": 42},
	}
	body, _ := json.Marshal(payload)
	return body
}

func postWebhook(t *testing.T, h http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", signature)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookReviewsPullRequest(t *testing.T) {
	t.Parallel()
	host := &fakeHost{
		files: []changeset.FileChange{
			{Filename: ".env", Status: "added", Additions: 1},
			{Filename: "main.go", Status: "modified", Additions: 11, Deletions: 3},
		},
		diff: "diff --git a/.env b/.env\n",
	}
	srv, st, _ := newTestServer(t, host)
	handler := srv.Handler()

	body := pullRequestPayload("opened")
	rec := postWebhook(t, handler, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	if len(host.comments) != 1 {
		t.Fatalf("comments posted = %d, want 1", len(host.comments))
	}
	if !strings.Contains(host.comments[0], "**no_env**: Do not commit .env files") {
		t.Errorf("comment missing violation: %q", host.comments[0])
	}
	if !strings.Contains(host.comments[0], "- Adds a secrets file") {
		t.Errorf("comment missing summary: %q", host.comments[0])
	}

	ps, err := st.GetPRSummary(context.Background(), "octo/widgets", 5)
	if err != nil {
		t.Fatalf("GetPRSummary: %v", err)
	}
	if ps.Title != "Add config" || ps.AuthorLogin != "octocat" || ps.ChangedFiles != 2 {
		t.Errorf("persisted summary = %+v", ps)
	}
	if len(ps.Violations) != 1 || ps.Violations[0].RuleID != "no_env" {
		t.Errorf("persisted violations = %+v", ps.Violations)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()
	host := &fakeHost{}
	srv, st, _ := newTestServer(t, host)

	body := pullRequestPayload("opened")
	rec := postWebhook(t, srv.Handler(), body, "sha256=deadbeef")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(host.comments) != 0 {
		t.Errorf("rejected delivery must not post comments")
	}
	if _, err := st.GetPRSummary(context.Background(), "octo/widgets", 5); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected delivery must not persist, got %v", err)
	}
}

func TestWebhookIgnoresUnreviewedActions(t *testing.T) {
	t.Parallel()
	host := &fakeHost{}
	srv, _, _ := newTestServer(t, host)

	body := pullRequestPayload("closed")
	rec := postWebhook(t, srv.Handler(), body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ignored event") {
		t.Errorf("body = %s", rec.Body)
	}
	if len(host.comments) != 0 {
		t.Errorf("ignored event must not post comments")
	}
}

func TestWebhookFetchFailurePropagates(t *testing.T) {
	t.Parallel()
	host := &fakeHost{fetchErr: errors.New("upstream down")}
	srv, _, _ := newTestServer(t, host)

	body := pullRequestPayload("opened")
	rec := postWebhook(t, srv.Handler(), body, sign(body))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, &fakeHost{})

	body, _ := json.Marshal(review.Request{
		Title: "t",
		Files: []changeset.FileChange{{Filename: ".env", Status: "added"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp review.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Violations) != 1 || resp.Violations[0].RuleID != "no_env" {
		t.Errorf("violations = %+v", resp.Violations)
	}
	if resp.Summary != "- Adds a secrets file" {
		t.Errorf("summary = %q", resp.Summary)
	}
}

func TestRulesCRUD(t *testing.T) {
	t.Parallel()
	srv, _, ruleStore := newTestServer(t, &fakeHost{})
	handler := srv.Handler()

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var rd *bytes.Reader
		if body != nil {
			data, _ := json.Marshal(body)
			rd = bytes.NewReader(data)
		} else {
			rd = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, rd)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/v1/rules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed rulesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if listed.Total != 2 {
		t.Errorf("total = %d, want 2", listed.Total)
	}

	newRule := rules.Rule{RuleID: "no_sql", Kind: rules.KindEndsWith, Match: ".sql", Reason: "No raw SQL files"}
	if rec := do(http.MethodPost, "/v1/rules", ruleEnvelope{Rule: newRule}); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodPost, "/v1/rules", ruleEnvelope{Rule: newRule}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}
	bad := rules.Rule{RuleID: "half_baked", Kind: rules.KindEquals, Reason: "missing match"}
	if rec := do(http.MethodPost, "/v1/rules", ruleEnvelope{Rule: bad}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid create status = %d, want 400", rec.Code)
	}

	updated := newRule
	updated.Reason = "Migrations belong in the migrations service"
	if rec := do(http.MethodPut, "/v1/rules/no_sql", ruleEnvelope{Rule: updated}); rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body)
	}
	got, err := ruleStore.Get("no_sql")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Reason != updated.Reason {
		t.Errorf("reason = %q", got.Reason)
	}
	if rec := do(http.MethodPut, "/v1/rules/ghost", ruleEnvelope{Rule: updated}); rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}

	if rec := do(http.MethodDelete, "/v1/rules/no_sql", nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := do(http.MethodDelete, "/v1/rules/no_sql", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestChatEndpoints(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, &fakeHost{})
	handler := srv.Handler()

	body, _ := json.Marshal(chat.Request{Message: "what rules exist?", UserID: "alice"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp chat.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding chat response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected a session id")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d", rec.Code)
	}
	var sessions []store.ChatSession
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decoding sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].MessageCount != 2 {
		t.Errorf("sessions = %+v", sessions)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/"+resp.SessionID+"/messages", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("messages status = %d", rec.Code)
	}
	var messages []store.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != "user" {
		t.Errorf("messages = %+v", messages)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/chat/sessions/"+resp.SessionID, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete without user_id status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/chat/sessions/"+resp.SessionID+"?user_id=mallory", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete as non-owner status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/chat/sessions/"+resp.SessionID+"?user_id=alice", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("delete as owner status = %d, want 200", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, &fakeHost{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

// newDashboardServer points the OAuth client at a fake GitHub API and seeds
// one reviewed pull request.
func newDashboardServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	mux := http.NewServeMux()
	requireUserToken := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer gho_usertoken" {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("GET /api/v3/user/repos", func(w http.ResponseWriter, r *http.Request) {
		if !requireUserToken(w, r) {
			return
		}
		fmt.Fprint(w, `[{
			"name": "widgets", "full_name": "octo/widgets",
			"open_issues_count": 4, "updated_at": "2026-08-01T10:00:00Z",
			"description": "widget factory", "private": true
		}]`)
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		if !requireUserToken(w, r) {
			return
		}
		fmt.Fprint(w, `[{
			"number": 5, "title": "Add config", "state": "open",
			"created_at": "2026-08-01T09:00:00Z", "updated_at": "2026-08-01T10:00:00Z",
			"user": {"login": "octocat"}
		}]`)
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/pulls/{number}", func(w http.ResponseWriter, r *http.Request) {
		if !requireUserToken(w, r) {
			return
		}
		if r.PathValue("number") == "7" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
			return
		}
		fmt.Fprintf(w, `{
			"number": %s, "title": "Add config", "state": "open",
			"created_at": "2026-08-01T09:00:00Z", "updated_at": "2026-08-01T10:00:00Z",
			"user": {"login": "octocat"}
		}`, r.PathValue("number"))
	})
	gh := httptest.NewServer(mux)
	t.Cleanup(gh.Close)

	srv, st, _ := newTestServer(t, &fakeHost{})
	oauth := githubapp.NewOAuth("id", "secret", "http://localhost/callback")
	oauth.SetEndpoints(gh.URL+"/login/oauth/authorize", gh.URL+"/login/oauth/access_token", gh.URL)
	srv.oauth = oauth

	err := st.UpsertPRSummary(context.Background(), store.PRSummary{
		RepoFullName: "octo/widgets",
		PRNumber:     5,
		Title:        "Add config",
		SummaryText:  "Adds configuration handling.",
		Violations:   []rules.Violation{{RuleID: "no_env", Status: "fail", Reason: "no env files"}},
	})
	if err != nil {
		t.Fatalf("seeding summary: %v", err)
	}
	return srv, srv.Handler()
}

func getAuthed(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer gho_usertoken")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDashboardListRepos(t *testing.T) {
	t.Parallel()
	_, handler := newDashboardServer(t)

	rec := getAuthed(t, handler, "/repos")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var repos []repoSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &repos); err != nil {
		t.Fatalf("decoding repos: %v", err)
	}
	want := repoSummary{
		Name: "widgets", FullName: "octo/widgets", OpenPRs: 4,
		LastUpdated: "2026-08-01T10:00:00Z", Description: "widget factory", Private: true,
	}
	if len(repos) != 1 || repos[0] != want {
		t.Errorf("repos = %+v, want [%+v]", repos, want)
	}
}

func TestDashboardRequiresToken(t *testing.T) {
	t.Parallel()
	_, handler := newDashboardServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/repos", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestDashboardListRepoPRs(t *testing.T) {
	t.Parallel()
	_, handler := newDashboardServer(t)

	rec := getAuthed(t, handler, "/repos/octo/widgets/pull-requests")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var prs []prListItem
	if err := json.Unmarshal(rec.Body.Bytes(), &prs); err != nil {
		t.Fatalf("decoding pull requests: %v", err)
	}
	if len(prs) != 1 || prs[0].Number != 5 || prs[0].Author != "octocat" || prs[0].Status != "open" {
		t.Errorf("prs = %+v", prs)
	}
}

func TestDashboardPRDetailJoinsPersistedReview(t *testing.T) {
	t.Parallel()
	_, handler := newDashboardServer(t)

	rec := getAuthed(t, handler, "/repos/octo/widgets/prs/5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var detail prDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decoding detail: %v", err)
	}
	if detail.Number != 5 || detail.Owner != "octocat" {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Summary != "Adds configuration handling." {
		t.Errorf("summary = %q", detail.Summary)
	}
	if len(detail.Violations) != 1 || detail.Violations[0].RuleID != "no_env" {
		t.Errorf("violations = %+v", detail.Violations)
	}
}

func TestDashboardPRDetailUnreviewed(t *testing.T) {
	t.Parallel()
	_, handler := newDashboardServer(t)

	rec := getAuthed(t, handler, "/repos/octo/widgets/prs/6")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var detail prDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decoding detail: %v", err)
	}
	if detail.Summary != "" {
		t.Errorf("summary = %q, want empty", detail.Summary)
	}
	if detail.Violations == nil || len(detail.Violations) != 0 {
		t.Errorf("violations = %+v, want empty array", detail.Violations)
	}
}

func TestDashboardPropagatesUpstreamStatus(t *testing.T) {
	t.Parallel()
	_, handler := newDashboardServer(t)

	rec := getAuthed(t, handler, "/repos/octo/widgets/prs/7")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOAuthCallbackRedirectsToDashboard(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "gho_testtoken", "token_type": "bearer"}`)
	})
	mux.HandleFunc("GET /api/v3/user", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"login": "octocat", "id": 7}`)
	})
	gh := httptest.NewServer(mux)
	t.Cleanup(gh.Close)

	oauth := githubapp.NewOAuth("id", "secret", "http://localhost/callback")
	oauth.SetEndpoints(gh.URL+"/login/oauth/authorize", gh.URL+"/login/oauth/access_token", gh.URL)

	srv, _, _ := newTestServer(t, &fakeHost{})
	srv.oauth = oauth

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "http://localhost:3000/dashboard?token=gho_testtoken&user=") {
		t.Errorf("location = %q", location)
	}
}
