// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/talkalert/internal/models"
)

func rule(id, user, sound string, vol int) models.Rule {
	return models.Rule{ID: id, UserID: user, SoundPath: sound, Volume: models.IntPtr(vol)}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	table := NewTable(models.RuleSet{rule("a", "123", "ding.wav", 80)})

	r, ok := table.Lookup("123")
	if !ok {
		t.Fatal("expected match for 123")
	}
	if r.SoundPath != "ding.wav" || r.VolumeOrDefault() != 80 {
		t.Errorf("unexpected rule: %+v", r)
	}

	if _, ok := table.Lookup("999"); ok {
		t.Error("expected no match for 999")
	}
}

func TestUpsertLastWriteWins(t *testing.T) {
	t.Parallel()

	table := NewTable(nil)
	r1 := rule("r1", "42", "one.wav", 10)
	r2 := rule("r2", "42", "two.wav", 20)

	if _, err := table.Upsert(r1); err != nil {
		t.Fatalf("Upsert r1: %v", err)
	}
	if _, err := table.Upsert(r2); err != nil {
		t.Fatalf("Upsert r2: %v", err)
	}

	got, ok := table.Lookup("42")
	if !ok {
		t.Fatal("expected match")
	}
	if got.ID != "r2" || got.SoundPath != "two.wav" {
		t.Errorf("expected r2, got %+v", got)
	}
	if table.Len() != 1 {
		t.Errorf("expected a single rule, got %d", table.Len())
	}
}

func TestUpsertSameIDChangesUser(t *testing.T) {
	t.Parallel()

	table := NewTable(models.RuleSet{rule("r1", "1", "a.wav", 50)})
	if _, err := table.Upsert(rule("r1", "2", "a.wav", 50)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, ok := table.Lookup("1"); ok {
		t.Error("old user id should no longer match")
	}
	if _, ok := table.Lookup("2"); !ok {
		t.Error("new user id should match")
	}
}

func TestUpsertAssignsIDAndRejectsEmptyUser(t *testing.T) {
	t.Parallel()

	table := NewTable(nil)
	stored, err := table.Upsert(models.Rule{UserID: "7"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stored.ID == "" {
		t.Error("expected generated id")
	}
	if stored.VolumeOrDefault() != models.DefaultVolume {
		t.Errorf("expected default volume, got %d", stored.VolumeOrDefault())
	}

	if _, err := table.Upsert(models.Rule{}); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestReplaceAllDeduplicates(t *testing.T) {
	t.Parallel()

	table := NewTable(models.RuleSet{rule("old", "9", "old.wav", 1)})
	got := table.ReplaceAll(models.RuleSet{
		rule("a", "1", "a.wav", 10),
		rule("b", "2", "b.wav", 20),
		rule("c", "1", "c.wav", 30),
		{ID: "bad"},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d: %+v", len(got), got)
	}
	if got[0].ID != "c" {
		t.Errorf("expected later duplicate to take first slot, got %s", got[0].ID)
	}
	if _, ok := table.Lookup("9"); ok {
		t.Error("old rule should be gone")
	}
	if r, _ := table.Lookup("1"); r.SoundPath != "c.wav" {
		t.Errorf("expected c.wav, got %s", r.SoundPath)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	table := NewTable(models.RuleSet{rule("a", "1", "a.wav", 10)})
	if err := table.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := table.Lookup("1"); ok {
		t.Error("rule should be removed")
	}
	if err := table.Remove("a"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	table := NewTable(models.RuleSet{rule("a", "1", "a.wav", 10)})
	snap := table.Snapshot()
	snap[0].SoundPath = "mutated.wav"

	if r, _ := table.Lookup("1"); r.SoundPath != "a.wav" {
		t.Errorf("table mutated through snapshot: %s", r.SoundPath)
	}
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	table := NewTable(nil)
	var calls int
	var last models.RuleSet
	table.OnChange(func(rs models.RuleSet) {
		calls++
		last = rs
	})

	_, _ = table.Upsert(rule("a", "1", "a.wav", 10))
	_ = table.Remove("a")

	if calls != 2 {
		t.Errorf("expected 2 change callbacks, got %d", calls)
	}
	if len(last) != 0 {
		t.Errorf("expected empty set after remove, got %d", len(last))
	}
}

// TestConcurrentLookupSeesWholeSnapshots checks that readers racing a writer
// always see both rules of a ReplaceAll pair with matching generations.
func TestConcurrentLookupSeesWholeSnapshots(t *testing.T) {
	t.Parallel()

	table := NewTable(models.RuleSet{rule("a", "1", "gen-0", 1), rule("b", "2", "gen-0", 1)})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			gen := fmt.Sprintf("gen-%d", i)
			table.ReplaceAll(models.RuleSet{rule("a", "1", gen, 1), rule("b", "2", gen, 1)})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := table.Snapshot()
				if len(snap) != 2 || snap[0].SoundPath != snap[1].SoundPath {
					t.Errorf("torn snapshot: %+v", snap)
					return
				}
			}
		}()
	}

	wg.Wait()
}
