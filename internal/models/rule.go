// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package models defines the data types shared by the rule table, the sinks,
// the dispatch engine and the control API.
package models

import (
	"errors"
	"path/filepath"
	"strings"
)

// Volume bounds for rule playback.
const (
	MinVolume     = 0
	MaxVolume     = 100
	DefaultVolume = 100
)

// SupportedSoundExtensions lists the audio container formats the sound sink
// can decode.
var SupportedSoundExtensions = []string{".wav", ".mp3"}

// ErrEmptyUserID is returned when a rule has no user identifier.
var ErrEmptyUserID = errors.New("rule user_id must not be empty")

// Rule maps a monitored user to an alert sound.
//
// Volume is a percentage in [0,100]. A nil Volume in persisted JSON means
// "not set" and normalizes to DefaultVolume; an explicit 0 is honored.
type Rule struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty" validate:"max=100"`
	UserID    string `json:"user_id" validate:"required,max=64"`
	SoundPath string `json:"sound_path" validate:"omitempty,max=4096,soundfile"`
	Volume    *int   `json:"volume,omitempty" validate:"omitempty,min=0,max=100"`
	PushSound string `json:"pushover_sound,omitempty" validate:"max=64"`
}

// RuleSet is the ordered, persisted collection of rules.
type RuleSet []Rule

// VolumeOrDefault returns the clamped volume.
func (r *Rule) VolumeOrDefault() int {
	if r.Volume == nil {
		return DefaultVolume
	}
	return ClampVolume(*r.Volume)
}

// Normalize trims identifiers, clamps the volume and fills the default
// volume. It returns ErrEmptyUserID for a rule that cannot be matched.
func (r *Rule) Normalize() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Name = strings.TrimSpace(r.Name)
	r.SoundPath = strings.TrimSpace(r.SoundPath)
	r.PushSound = strings.TrimSpace(r.PushSound)
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	v := r.VolumeOrDefault()
	r.Volume = &v
	return nil
}

// DisplayName returns the rule name, falling back to the user ID.
func (r *Rule) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.UserID
}

// ClampVolume limits v to [MinVolume, MaxVolume].
func ClampVolume(v int) int {
	if v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// IsSupportedSound reports whether path has a decodable audio extension.
func IsSupportedSound(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range SupportedSoundExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
