/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reviewloop/reviewloop/changeset"
	"github.com/reviewloop/reviewloop/llm"
	"github.com/reviewloop/reviewloop/rules"
)

type fakeClient struct {
	response string
	err      error
	lastReq  llm.Request
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	f.lastReq = req
	return f.response, f.err
}

func seededRules(t *testing.T) *rules.Store {
	t.Helper()
	s := rules.NewStore(filepath.Join(t.TempDir(), "rules.yaml"))
	err := s.Save([]rules.Rule{{
		RuleID: "no_env", Kind: rules.KindEquals, Match: ".env", Reason: "no env files",
	}, {
		RuleID: "max_file_limit", Kind: rules.KindGlobal, Threshold: 2, Reason: "too many files",
	}})
	if err != nil {
		t.Fatalf("seeding rules: %v", err)
	}
	return s
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	client := &fakeClient{response: "- **Goal:** ship it"}
	a := NewAnalyzer(seededRules(t), client)

	resp, err := a.Analyze(context.Background(), Request{
		Title:       "Add config",
		Description: "adds configuration",
		Diff:        "fake diff",
		Files: []changeset.FileChange{
			{Filename: ".env", Status: "added"},
			{Filename: "a.py", Status: "modified"},
			{Filename: "b.py", Status: "modified"},
		},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Summary != "- **Goal:** ship it" {
		t.Errorf("summary = %q", resp.Summary)
	}
	var ids []string
	for _, v := range resp.Violations {
		ids = append(ids, v.RuleID)
	}
	if strings.Join(ids, ",") != "no_env,max_file_limit" {
		t.Errorf("violations = %v", ids)
	}
	if !strings.Contains(client.lastReq.Messages[0].Content, "Add config") {
		t.Error("prompt missing PR title")
	}
	if !strings.Contains(client.lastReq.Messages[0].Content, "fake diff") {
		t.Error("prompt missing diff")
	}
}

func TestAnalyzeLLMFailureFallsBack(t *testing.T) {
	t.Parallel()
	client := &fakeClient{err: errors.New("quota exceeded")}
	a := NewAnalyzer(seededRules(t), client)

	resp, err := a.Analyze(context.Background(), Request{
		Title: "x",
		Files: []changeset.FileChange{{Filename: ".env"}},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Summary != summaryFallback {
		t.Errorf("summary = %q, want fallback", resp.Summary)
	}
	// Rule checks still ran.
	if len(resp.Violations) != 1 {
		t.Errorf("violations = %+v, want the no_env violation", resp.Violations)
	}
}

func TestAnalyzeDerivesFilesFromDiff(t *testing.T) {
	t.Parallel()
	const diff = `diff --git a/.env b/.env
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/.env
@@ -0,0 +1,1 @@
+SECRET=1
`
	client := &fakeClient{response: "summary"}
	a := NewAnalyzer(seededRules(t), client)

	resp, err := a.Analyze(context.Background(), Request{Title: "t", Diff: diff})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(resp.Violations) != 1 || resp.Violations[0].RuleID != "no_env" {
		t.Errorf("violations = %+v, want no_env from parsed diff", resp.Violations)
	}
}

func TestFormatComment(t *testing.T) {
	t.Parallel()
	body := FormatComment("A summary.", []rules.Violation{
		{RuleID: "no_env", Status: "fail", Reason: "no env files"},
	})
	for _, want := range []string{
		"## 🤖 Reviewloop Review",
		"A summary.",
		"### ❌ Rule Violations:",
		"- **no_env**: no env files",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("comment missing %q", want)
		}
	}

	clean := FormatComment("All good.", nil)
	if !strings.Contains(clean, "### ✅ No rule violations found.") {
		t.Errorf("clean comment = %q", clean)
	}
}
