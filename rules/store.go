/*
Copyright 2026 Reviewloop Authors
SPDX-License-Identifier: Apache-2.0
*/

package rules

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrRuleNotFound is returned when an operation names a rule_id that is
	// not present in the store.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrRuleExists is returned by Create when a rule with the same rule_id
	// already exists.
	ErrRuleExists = errors.New("rule already exists")
)

// Store is a durable, ordered collection of rules backed by a single YAML
// file. Every mutation is a whole-collection read-modify-write. A
// process-local mutex makes each cycle atomic from this process's
// perspective; concurrent writers in other processes remain last-write-wins.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the YAML file at path. The file does
// not need to exist yet; a missing file reads as an empty ruleset.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the full ruleset from disk.
func (s *Store) Load() ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Rule, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var ruleset []Rule
	if err := yaml.Unmarshal(data, &ruleset); err != nil {
		return nil, fmt.Errorf("decoding rules file: %w", err)
	}
	for _, r := range ruleset {
		if !r.Kind.Valid() {
			return nil, fmt.Errorf("rules file: rule %q has unknown kind %q", r.RuleID, r.Kind)
		}
	}
	return ruleset, nil
}

// Save replaces the entire ruleset on disk.
func (s *Store) Save(ruleset []Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ruleset)
}

func (s *Store) save(ruleset []Rule) error {
	data, err := yaml.Marshal(ruleset)
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules file: %w", err)
	}
	return nil
}

// Get returns the first rule with the given rule_id.
func (s *Store) Get(ruleID string) (Rule, error) {
	ruleset, err := s.Load()
	if err != nil {
		return Rule{}, err
	}
	for _, r := range ruleset {
		if r.RuleID == ruleID {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrRuleNotFound, ruleID)
}

// Create validates and appends a rule. Duplicate rule_ids are rejected to
// preserve the uniqueness invariant.
func (s *Store) Create(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ruleset, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range ruleset {
		if r.RuleID == rule.RuleID {
			return fmt.Errorf("%w: %q", ErrRuleExists, rule.RuleID)
		}
	}
	return s.save(append(ruleset, rule))
}

// Update replaces the rule with the given rule_id in place, preserving its
// position in the ruleset.
func (s *Store) Update(ruleID string, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ruleset, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range ruleset {
		if r.RuleID == ruleID {
			ruleset[i] = rule
			return s.save(ruleset)
		}
	}
	return fmt.Errorf("%w: %q", ErrRuleNotFound, ruleID)
}

// Delete removes every rule with the given rule_id. Deleting an absent
// rule_id is a no-op, not an error.
func (s *Store) Delete(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ruleset, err := s.load()
	if err != nil {
		return err
	}
	kept := ruleset[:0]
	for _, r := range ruleset {
		if r.RuleID != ruleID {
			kept = append(kept, r)
		}
	}
	return s.save(kept)
}
