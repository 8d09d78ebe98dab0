// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package rules holds the live rule table consulted by the dispatch engine.
//
// The table is copy-on-write: every mutation builds a new immutable snapshot
// and swaps it in with a single atomic store. Lookups never take a lock and
// always observe a fully applied snapshot.
package rules

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tomtom215/talkalert/internal/models"
)

// ErrRuleNotFound is returned by Remove for an unknown rule ID.
var ErrRuleNotFound = errors.New("rule not found")

// snapshot is never modified after it is published.
type snapshot struct {
	ordered  models.RuleSet
	byUserID map[string]int
}

func buildSnapshot(rules models.RuleSet) *snapshot {
	s := &snapshot{
		ordered:  make(models.RuleSet, 0, len(rules)),
		byUserID: make(map[string]int, len(rules)),
	}
	for i := range rules {
		r := rules[i]
		if idx, ok := s.byUserID[r.UserID]; ok {
			// Same user seen earlier in the set: the later rule wins and
			// takes over the earlier slot.
			s.ordered[idx] = r
			continue
		}
		s.byUserID[r.UserID] = len(s.ordered)
		s.ordered = append(s.ordered, r)
	}
	return s
}

// Table is the concurrent-safe rule store.
type Table struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
	onSwap  []func(models.RuleSet)
}

// NewTable creates a table holding rules. Invalid rules are skipped.
func NewTable(rules models.RuleSet) *Table {
	t := &Table{}
	t.current.Store(buildSnapshot(normalizeAll(rules)))
	return t
}

// OnChange registers fn to be called with the new rule set after every
// successful mutation. Callbacks run synchronously on the mutating
// goroutine, after the swap.
func (t *Table) OnChange(fn func(models.RuleSet)) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.onSwap = append(t.onSwap, fn)
}

// Lookup returns the rule for userID.
func (t *Table) Lookup(userID string) (models.Rule, bool) {
	s := t.current.Load()
	idx, ok := s.byUserID[userID]
	if !ok {
		return models.Rule{}, false
	}
	return s.ordered[idx], true
}

// Snapshot returns a copy of the current rule set in order.
func (t *Table) Snapshot() models.RuleSet {
	s := t.current.Load()
	out := make(models.RuleSet, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of active rules.
func (t *Table) Len() int {
	return len(t.current.Load().ordered)
}

// ReplaceAll atomically swaps in a new rule set. Rules without a user ID
// are skipped; for duplicate user IDs the last one wins.
func (t *Table) ReplaceAll(rules models.RuleSet) models.RuleSet {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	next := buildSnapshot(normalizeAll(rules))
	t.current.Store(next)
	t.notifyLocked(next)
	return cloneSet(next.ordered)
}

// Upsert inserts rule or replaces the rule with the same ID or user ID.
// An empty ID is assigned a fresh UUID. The stored rule is returned.
func (t *Table) Upsert(rule models.Rule) (models.Rule, error) {
	if err := rule.Normalize(); err != nil {
		return models.Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	prev := t.current.Load().ordered
	next := make(models.RuleSet, 0, len(prev)+1)
	placed := false
	for _, r := range prev {
		if r.ID == rule.ID || r.UserID == rule.UserID {
			if !placed {
				next = append(next, rule)
				placed = true
			}
			continue
		}
		next = append(next, r)
	}
	if !placed {
		next = append(next, rule)
	}

	snap := buildSnapshot(next)
	t.current.Store(snap)
	t.notifyLocked(snap)
	return rule, nil
}

// Remove deletes the rule with the given ID.
func (t *Table) Remove(id string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	prev := t.current.Load().ordered
	next := make(models.RuleSet, 0, len(prev))
	found := false
	for _, r := range prev {
		if r.ID == id {
			found = true
			continue
		}
		next = append(next, r)
	}
	if !found {
		return ErrRuleNotFound
	}

	snap := buildSnapshot(next)
	t.current.Store(snap)
	t.notifyLocked(snap)
	return nil
}

func (t *Table) notifyLocked(s *snapshot) {
	for _, fn := range t.onSwap {
		fn(cloneSet(s.ordered))
	}
}

func normalizeAll(rules models.RuleSet) models.RuleSet {
	out := make(models.RuleSet, 0, len(rules))
	for _, r := range rules {
		if err := r.Normalize(); err != nil {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		out = append(out, r)
	}
	return out
}

func cloneSet(rs models.RuleSet) models.RuleSet {
	out := make(models.RuleSet, len(rs))
	copy(out, rs)
	return out
}
