/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package rules implements the declarative review rules: the rule model,
// the file-backed rule store, and the matcher that evaluates a ruleset
// against a changeset.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidRule is wrapped by every Validate failure.
var ErrInvalidRule = errors.New("invalid rule")

// Kind discriminates how a rule matches a changeset. The set is closed:
// decoding an unknown kind fails instead of producing a silently inert rule.
type Kind string

const (
	// KindEquals fires when a changed file's name equals the match pattern.
	KindEquals Kind = "equals"
	// KindEndsWith fires when a changed file's name has the match pattern as a suffix.
	KindEndsWith Kind = "endswith"
	// KindGlobal fires on a property of the whole changeset rather than a single file.
	KindGlobal Kind = "global"
)

// Valid reports whether k is a recognized rule kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEquals, KindEndsWith, KindGlobal:
		return true
	}
	return false
}

// Rule is a named predicate over a changeset. The wire field is named "type"
// for compatibility with existing rules.yaml files and API clients.
type Rule struct {
	RuleID    string `json:"rule_id" yaml:"rule_id"`
	Kind      Kind   `json:"type" yaml:"type"`
	Match     string `json:"match,omitempty" yaml:"match,omitempty"`
	Threshold int    `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Reason    string `json:"reason" yaml:"reason"`
}

// Validate checks that the rule is complete enough to evaluate.
func (r Rule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("%w: missing rule_id", ErrInvalidRule)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: rule %q has unknown kind %q", ErrInvalidRule, r.RuleID, r.Kind)
	}
	switch r.Kind {
	case KindEquals, KindEndsWith:
		if r.Match == "" {
			return fmt.Errorf("%w: rule %q (%s) requires a match pattern", ErrInvalidRule, r.RuleID, r.Kind)
		}
	case KindGlobal:
		if r.Threshold <= 0 {
			return fmt.Errorf("%w: rule %q (global) requires a positive threshold", ErrInvalidRule, r.RuleID)
		}
	}
	if r.Reason == "" {
		return fmt.Errorf("%w: rule %q is missing a reason", ErrInvalidRule, r.RuleID)
	}
	return nil
}

// SetField assigns a single named field on the rule, coercing the value from
// the loosely typed form an interpreted mutation carries. Unknown fields and
// type mismatches are rejected so a malformed action cannot corrupt a rule.
func (r *Rule) SetField(field string, value any) error {
	switch field {
	case "rule_id":
		s, err := stringValue(value)
		if err != nil {
			return fmt.Errorf("field rule_id: %w", err)
		}
		r.RuleID = s
	case "type", "kind":
		s, err := stringValue(value)
		if err != nil {
			return fmt.Errorf("field type: %w", err)
		}
		k := Kind(s)
		if !k.Valid() {
			return fmt.Errorf("field type: unknown kind %q", s)
		}
		r.Kind = k
	case "match":
		s, err := stringValue(value)
		if err != nil {
			return fmt.Errorf("field match: %w", err)
		}
		r.Match = s
	case "threshold":
		n, err := intValue(value)
		if err != nil {
			return fmt.Errorf("field threshold: %w", err)
		}
		r.Threshold = n
	case "reason":
		s, err := stringValue(value)
		if err != nil {
			return fmt.Errorf("field reason: %w", err)
		}
		r.Reason = s
	default:
		return fmt.Errorf("unknown rule field %q", field)
	}
	return nil
}

func stringValue(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// Violation is evidence that a changeset broke a rule.
type Violation struct {
	RuleID string `json:"rule_id"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}
