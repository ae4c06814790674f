/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/rules"
)

// FormatComment renders the analysis as the markdown body posted back to the
// pull request.
func FormatComment(summary string, violations []rules.Violation) string {
	var sb strings.Builder
	sb.WriteString("## 🤖 Reviewloop Review\n\n")
	sb.WriteString("### ✅ PR Summary:\n\n")
	sb.WriteString(strings.TrimSpace(summary))
	sb.WriteString("\n\n")

	if len(violations) == 0 {
		sb.WriteString("### ✅ No rule violations found.\n")
	} else {
		sb.WriteString("### ❌ Rule Violations:\n")
		for _, v := range violations {
			fmt.Fprintf(&sb, "- **%s**: %s\n", v.RuleID, v.Reason)
		}
	}

	sb.WriteString("\n---\n_I'm an automated reviewer powered by an LLM and a rule engine._")
	return sb.String()
}
