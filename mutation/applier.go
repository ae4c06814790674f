/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package mutation

import (
	"context"
	"errors"

	"github.com/chainguard-dev/clog"

	"github.com/reviewloop/reviewloop/rules"
)

// Applier executes interpreted actions against the rule store. Each action
// is an independent whole-collection read-modify-write against the current
// on-disk ruleset; a failing action never aborts its siblings.
type Applier struct {
	store *rules.Store
}

// NewApplier returns an applier bound to the given rule store.
func NewApplier(store *rules.Store) *Applier {
	return &Applier{store: store}
}

// Apply runs every action in order and reports a per-action outcome.
func (a *Applier) Apply(ctx context.Context, actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for _, action := range actions {
		results = append(results, a.applyOne(ctx, action))
	}
	return results
}

func (a *Applier) applyOne(ctx context.Context, action Action) Result {
	log := clog.FromContext(ctx).With("action", string(action.Action)).With("rule_id", action.ruleID())

	switch action.Action {
	case OpUpdate:
		// Re-read the rule for the existence check so the applier never
		// trusts the snapshot the interpreter saw.
		rule, err := a.store.Get(action.RuleID)
		if errors.Is(err, rules.ErrRuleNotFound) {
			log.Warn("Update targets a rule that does not exist")
			return Result{Action: action, Outcome: OutcomeNotFound}
		}
		if err != nil {
			return failed(log, action, err)
		}
		if err := rule.SetField(action.Field, action.Value); err != nil {
			return failed(log, action, err)
		}
		if err := a.store.Update(action.RuleID, rule); err != nil {
			return failed(log, action, err)
		}
		log.Info("Updated rule")
		return Result{Action: action, Outcome: OutcomeApplied}

	case OpCreate:
		if err := a.store.Create(*action.RuleData); err != nil {
			return failed(log, action, err)
		}
		log.Info("Created rule")
		return Result{Action: action, Outcome: OutcomeApplied}

	case OpDelete:
		// Deleting an absent rule_id is reported as applied; the store's
		// delete is a filtering no-op in that case.
		if err := a.store.Delete(action.RuleID); err != nil {
			return failed(log, action, err)
		}
		log.Info("Deleted rule")
		return Result{Action: action, Outcome: OutcomeApplied}
	}

	return failed(log, action, errors.New("unknown action"))
}

func failed(log *clog.Logger, action Action, err error) Result {
	log.With("error", err.Error()).Error("Mutation failed")
	return Result{Action: action, Outcome: OutcomeFailed, Err: err}
}
