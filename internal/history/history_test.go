// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/talkalert/internal/models"
)

func openTest(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(id string, at time.Time) *models.DispatchResult {
	return &models.DispatchResult{
		ID:    id,
		Event: models.InboundEvent{AuthorUserID: "123"},
		Rule:  &models.Rule{ID: "r1", UserID: "123"},
		Sound: models.Outcome{Status: models.StatusOK},
		Push:  models.Skipped(),
		At:    at,
	}
}

func TestRecentNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTest(t, Config{InMemory: true, Limit: 2})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.Append(result(fmt.Sprintf("id-%d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"default limit", 0, []string{"id-4", "id-3"}},
		{"negative uses default", -3, []string{"id-4", "id-3"}},
		{"explicit", 3, []string{"id-4", "id-3", "id-2"}},
		{"more than stored", 50, []string{"id-4", "id-3", "id-2", "id-1", "id-0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Recent(tt.limit)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Recent(%d) = %d results, want %d", tt.limit, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i] {
					t.Errorf("Recent(%d)[%d] = %s, want %s", tt.limit, i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestRecordConsumesChannel(t *testing.T) {
	t.Parallel()
	s := openTest(t, Config{InMemory: true})

	ch := make(chan models.DispatchResult, 2)
	ch <- *result("a", time.Now())
	ch <- *result("b", time.Now().Add(time.Millisecond))
	close(ch)

	if err := s.Record(context.Background(), ch); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[0].Rule == nil || got[0].Rule.ID != "r1" {
		t.Errorf("Recent() = %+v", got)
	}
}

func TestRecordStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := openTest(t, Config{InMemory: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Record(ctx, make(chan models.DispatchResult)); !errors.Is(err, context.Canceled) {
		t.Errorf("Record() error = %v, want context.Canceled", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(Config{Path: dir, TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(result("keep", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := s.Recent(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Recent() after Close error = %v, want ErrClosed", err)
	}

	reopened := openTest(t, Config{Path: dir})
	got, err := reopened.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Errorf("Recent() after reopen = %+v", got)
	}
}
