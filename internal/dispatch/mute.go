// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

// MuteSwitch is the global alert gate. Reads are lock-free.
type MuteSwitch struct {
	muted atomic.Bool

	hookMu sync.Mutex
	hooks  []func(muted bool)
}

// NewMuteSwitch creates a switch in the given state.
func NewMuteSwitch(muted bool) *MuteSwitch {
	m := &MuteSwitch{}
	m.muted.Store(muted)
	metrics.SetMuted(muted)
	return m
}

// IsMuted reports the current state.
func (m *MuteSwitch) IsMuted() bool {
	return m.muted.Load()
}

// SetMuted sets the state and reports whether it changed. Hooks run only
// on a change, synchronously, in registration order.
func (m *MuteSwitch) SetMuted(muted bool) bool {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()

	if m.muted.Swap(muted) == muted {
		return false
	}
	metrics.SetMuted(muted)
	for _, fn := range m.hooks {
		fn(muted)
	}
	return true
}

// OnChange registers fn for state changes.
func (m *MuteSwitch) OnChange(fn func(muted bool)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// SettingsRef is a live, swappable reference to the user settings. The
// engine reads it once per matched event.
type SettingsRef struct {
	p atomic.Pointer[models.Settings]
}

// NewSettingsRef creates a reference holding s.
func NewSettingsRef(s models.Settings) *SettingsRef {
	r := &SettingsRef{}
	r.Store(s)
	return r
}

// Load returns a copy of the current settings.
func (r *SettingsRef) Load() models.Settings {
	return *r.p.Load()
}

// Store replaces the settings.
func (r *SettingsRef) Store(s models.Settings) {
	r.p.Store(&s)
}
