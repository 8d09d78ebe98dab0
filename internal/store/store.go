// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package store persists the user-editable state (rules, bot token,
// Pushover settings, mute) as a single JSON document.
//
// The layout is flat and matches the config.json written by earlier
// TalkAlert releases, so existing files load unchanged:
//
//	{
//	  "mute": false,
//	  "token": "...",
//	  "pushover_enabled": true,
//	  "pushover_user_key": "...",
//	  "pushover_app_token": "...",
//	  "pushover_include_message": true,
//	  "rules": [{"id": "...", "name": "...", "user_id": "...", "sound_path": "...", "volume": 80, "pushover_sound": "..."}]
//	}
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/models"
)

// document is the on-disk layout.
type document struct {
	Mute                   bool          `json:"mute"`
	Token                  string        `json:"token"`
	PushoverEnabled        bool          `json:"pushover_enabled"`
	PushoverUserKey        string        `json:"pushover_user_key"`
	PushoverAppToken       string        `json:"pushover_app_token"`
	PushoverIncludeMessage *bool         `json:"pushover_include_message,omitempty"`
	LegacyPushoverSound    string        `json:"pushover_sound,omitempty"`
	Rules                  []models.Rule `json:"rules"`
}

// Store reads and writes the state file. Saves are serialized and atomic:
// the document is written to a temporary file and renamed into place.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store for path.
func New(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields empty state and no
// error. Rules without a user ID are dropped.
func (s *Store) Load() (models.RuleSet, models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.RuleSet{}, defaultSettings(), nil
		}
		return nil, models.Settings{}, fmt.Errorf("read state file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, models.Settings{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return fromDocument(&doc)
}

func defaultSettings() models.Settings {
	return models.Settings{Pushover: models.PushoverSettings{IncludeMessage: true}}
}

func fromDocument(doc *document) (models.RuleSet, models.Settings, error) {
	settings := models.Settings{
		BotToken: strings.TrimSpace(doc.Token),
		Muted:    doc.Mute,
		Pushover: models.PushoverSettings{
			Enabled:        doc.PushoverEnabled,
			APIToken:       strings.TrimSpace(doc.PushoverAppToken),
			UserKey:        strings.TrimSpace(doc.PushoverUserKey),
			IncludeMessage: true,
		},
	}
	if doc.PushoverIncludeMessage != nil {
		settings.Pushover.IncludeMessage = *doc.PushoverIncludeMessage
	}

	legacySound := strings.TrimSpace(doc.LegacyPushoverSound)
	rules := make(models.RuleSet, 0, len(doc.Rules))
	for i := range doc.Rules {
		r := doc.Rules[i]
		if err := r.Normalize(); err != nil {
			logging.Warn().Int("index", i).Err(err).Msg("Skipping invalid rule in state file")
			continue
		}
		if r.PushSound == "" {
			r.PushSound = legacySound
		}
		rules = append(rules, r)
	}
	return rules, settings, nil
}

// Save writes rules and settings.
func (s *Store) Save(rules models.RuleSet, settings models.Settings) error {
	include := settings.Pushover.IncludeMessage
	doc := document{
		Mute:                   settings.Muted,
		Token:                  settings.BotToken,
		PushoverEnabled:        settings.Pushover.Enabled,
		PushoverUserKey:        settings.Pushover.UserKey,
		PushoverAppToken:       settings.Pushover.APIToken,
		PushoverIncludeMessage: &include,
		Rules:                  rules,
	}
	if doc.Rules == nil {
		doc.Rules = models.RuleSet{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	// The file holds the bot token and Pushover keys.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
