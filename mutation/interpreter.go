/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/invopop/jsonschema"

	"github.com/reviewloop/reviewloop/llm"
	"github.com/reviewloop/reviewloop/rules"
)

const (
	interpretTemperature = 0.1
	interpretMaxTokens   = 500
)

// Interpreter turns a free-text rule-management request into structured
// actions via the completion capability.
type Interpreter struct {
	client llm.Client
}

// NewInterpreter returns an interpreter backed by the given completion client.
func NewInterpreter(client llm.Client) *Interpreter {
	return &Interpreter{client: client}
}

// Interpret asks the model what actions, if any, the user message requests
// against the current ruleset. It fails soft: any completion error or
// malformed output yields an empty action list, never an error. Callers must
// treat an empty result as "no mutation requested".
func (i *Interpreter) Interpret(ctx context.Context, userMessage string, current []rules.Rule) []Action {
	log := clog.FromContext(ctx)

	text, err := i.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    "user",
			Content: interpretPrompt(userMessage, current),
		}},
		Temperature: interpretTemperature,
		MaxTokens:   interpretMaxTokens,
	})
	if err != nil {
		log.With("error", err.Error()).Warn("Rule interpretation call failed, assuming no actions")
		return nil
	}

	actions, err := decodeActions(text)
	if err != nil {
		log.With("error", err.Error()).Warn("Rule interpretation output unusable, assuming no actions")
		return nil
	}
	return actions
}

func interpretPrompt(userMessage string, current []rules.Rule) string {
	var sb strings.Builder
	sb.WriteString("You are a rule management interpreter. Based on the user's request and current rules, determine what actions need to be taken.\n\n")
	sb.WriteString("Current rules:\n")
	for _, r := range current {
		fmt.Fprintf(&sb, "- %s: %s type, %s\n", r.RuleID, r.Kind, r.Reason)
	}
	fmt.Fprintf(&sb, "\nUser request: %q\n\n", userMessage)
	sb.WriteString("Return a JSON array of actions. Each element must conform to this schema:\n\n")
	sb.WriteString(actionSchemaJSON())
	sb.WriteString("\n\nRules for the response:\n")
	sb.WriteString("- \"action\" is one of \"update\", \"create\", or \"delete\".\n")
	sb.WriteString("- Updates carry \"rule_id\", \"field\", and \"value\".\n")
	sb.WriteString("- Creates carry a complete \"rule_data\" object.\n")
	sb.WriteString("- Deletes carry just \"rule_id\".\n")
	sb.WriteString("- If the request asks for no rule changes, return [].\n\n")
	sb.WriteString("Examples:\n")
	sb.WriteString(`- "change file limit to 30" -> [{"action": "update", "rule_id": "max_file_limit", "field": "threshold", "value": 30}]` + "\n")
	sb.WriteString(`- "create rule for .log files" -> [{"action": "create", "rule_id": "no_log_files", "rule_data": {"rule_id": "no_log_files", "type": "endswith", "match": ".log", "reason": "Log files should not be committed"}}]` + "\n")
	sb.WriteString(`- "remove the env rule" -> [{"action": "delete", "rule_id": "no_env"}]` + "\n\n")
	sb.WriteString("Return only the JSON array, no other text.\n")
	return sb.String()
}

var actionSchemaOnce = sync.OnceValue(func() string {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(&Action{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// The schema is reflected from our own static type; this cannot
		// fail at runtime once it compiles.
		panic(fmt.Sprintf("marshaling action schema: %v", err))
	}
	return string(data)
})

// actionSchemaJSON returns the JSON schema of Action embedded in the
// interpretation prompt so the model sees the exact shape we will validate.
func actionSchemaJSON() string {
	return actionSchemaOnce()
}
