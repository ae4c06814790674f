/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package mutation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the JSON payload out of a model response that may wrap
// it in a markdown code fence or surround it with prose. If a ```json block
// is present its content wins; otherwise the text is trimmed of any stray
// fence markers and returned as-is.
func extractJSON(text string) string {
	lines := strings.Split(text, "\n")
	inBlock := false
	var block []string
	for _, line := range lines {
		switch {
		case !inBlock && strings.TrimSpace(line) == "```json":
			inBlock = true
		case inBlock && strings.TrimSpace(line) == "```":
			return strings.TrimSpace(strings.Join(block, "\n"))
		case inBlock:
			block = append(block, line)
		}
	}
	if inBlock {
		// Unterminated fence; take what we collected.
		return strings.TrimSpace(strings.Join(block, "\n"))
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// decodeActions parses and shape-checks the interpreted action list. Any
// malformed action invalidates the whole batch: applying half of a
// misunderstood request is worse than applying none of it.
func decodeActions(text string) ([]Action, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("empty interpretation payload")
	}

	var actions []Action
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&actions); err != nil {
		return nil, fmt.Errorf("decoding actions: %w", err)
	}
	for i, a := range actions {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return actions, nil
}
