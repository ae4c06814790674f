/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package mutation turns free-text rule-management requests into structured
// actions and applies them to the rule store. The interpreter half treats
// the completion capability as an untrusted text producer: anything that
// does not validate into a well-formed action list degrades to "no actions".
package mutation

import (
	"fmt"

	"github.com/reviewloop/reviewloop/rules"
)

// Op is the kind of mutation an action performs.
type Op string

const (
	// OpUpdate sets a single field on an existing rule.
	OpUpdate Op = "update"
	// OpCreate appends a new rule.
	OpCreate Op = "create"
	// OpDelete removes a rule by id.
	OpDelete Op = "delete"
)

// Action is one structured mutation interpreted from a user request.
type Action struct {
	Action Op     `json:"action" jsonschema:"enum=update,enum=create,enum=delete"`
	RuleID string `json:"rule_id"`
	// Field and Value are set for update actions.
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
	// RuleData carries the full rule for create actions.
	RuleData *rules.Rule `json:"rule_data,omitempty"`
}

// validate checks the shape of an interpreted action before it may touch the
// store. It guards against superficially valid model output that would
// otherwise delete or corrupt a rule.
func (a Action) validate() error {
	switch a.Action {
	case OpUpdate:
		if a.RuleID == "" {
			return fmt.Errorf("update action is missing rule_id")
		}
		if a.Field == "" {
			return fmt.Errorf("update action for %q is missing field", a.RuleID)
		}
		if a.Value == nil {
			return fmt.Errorf("update action for %q is missing value", a.RuleID)
		}
	case OpCreate:
		if a.RuleData == nil {
			return fmt.Errorf("create action is missing rule_data")
		}
		if err := a.RuleData.Validate(); err != nil {
			return fmt.Errorf("create action: %w", err)
		}
	case OpDelete:
		if a.RuleID == "" {
			return fmt.Errorf("delete action is missing rule_id")
		}
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

// ruleID returns the rule id the action targets, falling back to the embedded
// rule data for create actions that omit the top-level id.
func (a Action) ruleID() string {
	if a.RuleID != "" {
		return a.RuleID
	}
	if a.RuleData != nil {
		return a.RuleData.RuleID
	}
	return ""
}

// Outcome is the per-action result of applying a mutation.
type Outcome string

const (
	// OutcomeApplied means the store reflects the action.
	OutcomeApplied Outcome = "applied"
	// OutcomeNotFound means the action named a rule_id that does not exist.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeFailed means the store rejected the action.
	OutcomeFailed Outcome = "failed"
)

// Result pairs an action with its outcome.
type Result struct {
	Action  Action
	Outcome Outcome
	// Err carries the failure cause for OutcomeFailed; informational only.
	Err error
}

// StatusLine renders the human-readable report line for a chat reply.
func (r Result) StatusLine() string {
	id := r.Action.ruleID()
	switch r.Action.Action {
	case OpUpdate:
		switch r.Outcome {
		case OutcomeApplied:
			return fmt.Sprintf("✅ **Updated rule '%s': %s = %v**", id, r.Action.Field, r.Action.Value)
		case OutcomeNotFound:
			return fmt.Sprintf("❌ **Rule '%s' not found**", id)
		default:
			return fmt.Sprintf("❌ **Failed to update rule '%s'**", id)
		}
	case OpCreate:
		if r.Outcome == OutcomeApplied {
			return fmt.Sprintf("✅ **Created rule '%s'**", id)
		}
		return fmt.Sprintf("❌ **Failed to create rule '%s'**", id)
	case OpDelete:
		if r.Outcome == OutcomeApplied {
			return fmt.Sprintf("✅ **Deleted rule '%s'**", id)
		}
		return fmt.Sprintf("❌ **Failed to delete rule '%s'**", id)
	}
	return fmt.Sprintf("❌ **Unsupported action for rule '%s'**", id)
}
