/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package rules

import (
	"strings"

	"github.com/reviewloop/reviewloop/changeset"
)

// maxFileLimitRuleID is the only global rule the matcher recognizes today.
// Other global rule_ids are inert.
const maxFileLimitRuleID = "max_file_limit"

// Evaluate matches every rule against the changeset and returns the
// violations in rule order, then file order. A single file may trigger
// multiple rules and a single rule may fire once per matching file; there is
// no short-circuiting. Evaluate is pure: it performs no I/O and mutates
// neither argument.
func Evaluate(files []changeset.FileChange, ruleset []Rule) []Violation {
	var violations []Violation

	for _, rule := range ruleset {
		switch rule.Kind {
		case KindGlobal:
			if rule.RuleID == maxFileLimitRuleID && len(files) > rule.Threshold {
				violations = append(violations, fail(rule))
			}
		case KindEquals:
			for _, f := range files {
				if f.Filename == rule.Match {
					violations = append(violations, fail(rule))
				}
			}
		case KindEndsWith:
			for _, f := range files {
				if strings.HasSuffix(f.Filename, rule.Match) {
					violations = append(violations, fail(rule))
				}
			}
		}
	}
	return violations
}

func fail(rule Rule) Violation {
	return Violation{
		RuleID: rule.RuleID,
		Status: "fail",
		Reason: rule.Reason,
	}
}
