// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/talkalert/internal/models"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "config.json"))
	rules, settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("rules = %v, want empty", rules)
	}
	if !settings.Pushover.IncludeMessage {
		t.Error("IncludeMessage should default to true")
	}
}

func TestLoadLegacyDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	legacy := `{
  "mute": true,
  "token": " bot-token ",
  "tray_on_minimize": true,
  "pushover_enabled": true,
  "pushover_user_key": "uKey",
  "pushover_app_token": "aToken",
  "pushover_push_when_muted": true,
  "pushover_include_message": false,
  "pushover_sound": "siren",
  "rules": [
    {"name": "Alice", "user_id": "111", "sound_path": "a.wav", "volume": 150},
    {"name": "Nobody", "user_id": "  ", "sound_path": "b.wav"},
    {"name": "Bob", "user_id": "222", "sound_path": "b.mp3", "pushover_sound": "bike"}
  ]
}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, settings, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !settings.Muted || settings.BotToken != "bot-token" {
		t.Errorf("settings = %+v", settings)
	}
	if !settings.Pushover.Enabled || settings.Pushover.IncludeMessage {
		t.Errorf("pushover = %+v, want enabled without message", settings.Pushover)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2 (blank user dropped)", len(rules))
	}
	if rules[0].VolumeOrDefault() != 100 {
		t.Errorf("volume = %d, want clamped 100", rules[0].VolumeOrDefault())
	}
	if rules[0].PushSound != "siren" || rules[1].PushSound != "bike" {
		t.Errorf("push sounds = %q, %q, want legacy siren and bike", rules[0].PushSound, rules[1].PushSound)
	}
}

func TestSaveLoadKeepsState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	s := New(path)

	rules := models.RuleSet{
		{ID: "r1", Name: "Alice", UserID: "111", SoundPath: "a.wav", Volume: models.IntPtr(0)},
	}
	settings := models.Settings{
		BotToken: "tok",
		Muted:    true,
		Pushover: models.PushoverSettings{Enabled: true, APIToken: "a", UserKey: "u"},
	}
	if err := s.Save(rules, settings); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	gotRules, gotSettings, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(gotRules) != 1 || gotRules[0].ID != "r1" || gotRules[0].VolumeOrDefault() != 0 {
		t.Errorf("rules = %+v, want r1 with explicit volume 0", gotRules)
	}
	if gotSettings != settings {
		t.Errorf("settings = %+v, want %+v", gotSettings, settings)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := New(path).Load(); err == nil {
		t.Error("Load() of corrupt file should fail")
	}
}
