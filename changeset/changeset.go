/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package changeset models the file-level diff of a single pull request.
package changeset

import (
	"fmt"

	"github.com/waigani/diffparser"
)

// FileChange describes one changed file in a pull request.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// ParseDiff derives FileChange entries from a raw unified diff. It is used
// when an analyze request carries diff text but no structured file list.
func ParseDiff(diff string) ([]FileChange, error) {
	parsed, err := diffparser.Parse(diff)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	changes := make([]FileChange, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		fc := FileChange{
			Filename: f.NewName,
			Status:   "modified",
		}
		switch f.Mode {
		case diffparser.NEW:
			fc.Status = "added"
		case diffparser.DELETED:
			fc.Status = "removed"
			fc.Filename = f.OrigName
		}
		for _, hunk := range f.Hunks {
			for _, line := range hunk.WholeRange.Lines {
				switch line.Mode {
				case diffparser.ADDED:
					fc.Additions++
				case diffparser.REMOVED:
					fc.Deletions++
				}
			}
		}
		changes = append(changes, fc)
	}
	return changes, nil
}
