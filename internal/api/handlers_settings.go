// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/validation"
)

// MuteState is the body of the mute endpoints.
type MuteState struct {
	Muted *bool `json:"muted" validate:"required"`
}

// GetMute returns the mute flag.
func (h *Handler) GetMute(w http.ResponseWriter, r *http.Request) {
	muted := h.deps.Mute.IsMuted()
	respondSuccess(w, http.StatusOK, MuteState{Muted: &muted})
}

// SetMute sets the mute flag. Muting stops current playback through the
// switch's change hooks.
func (h *Handler) SetMute(w http.ResponseWriter, r *http.Request) {
	var req MuteState
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	if h.deps.Mute.SetMuted(*req.Muted) {
		if err := h.persistLocked(); err != nil {
			respondError(w, http.StatusInternalServerError, ErrCodePersistFailed, "Mute applied but could not be saved", err)
			return
		}
		logging.Ctx(r.Context()).Info().Bool("muted", *req.Muted).Msg("Mute toggled")
	}
	respondSuccess(w, http.StatusOK, req)
}

// SettingsUpdate is a partial settings change; nil fields are unchanged.
type SettingsUpdate struct {
	BotToken *string         `json:"bot_token" validate:"omitempty,max=256"`
	Pushover *PushoverUpdate `json:"pushover"`
}

// PushoverUpdate is a partial Pushover settings change.
type PushoverUpdate struct {
	Enabled        *bool   `json:"enabled"`
	APIToken       *string `json:"api_token" validate:"omitempty,max=64"`
	UserKey        *string `json:"user_key" validate:"omitempty,max=64"`
	IncludeMessage *bool   `json:"include_message"`
}

// SettingsView is returned by the settings endpoints with secrets masked.
type SettingsView struct {
	models.Settings
	// RestartRequired is set when a change only takes effect after the
	// gateway reconnects on the next start.
	RestartRequired bool `json:"restart_required,omitempty"`
}

// GetSettings returns the settings with secrets redacted.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.settingsView(false))
}

// UpdateSettings applies a partial settings update.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	current := h.deps.Settings.Load()
	next := current
	if req.BotToken != nil {
		next.BotToken = strings.TrimSpace(*req.BotToken)
	}
	if p := req.Pushover; p != nil {
		if p.Enabled != nil {
			next.Pushover.Enabled = *p.Enabled
		}
		if p.APIToken != nil {
			next.Pushover.APIToken = strings.TrimSpace(*p.APIToken)
		}
		if p.UserKey != nil {
			next.Pushover.UserKey = strings.TrimSpace(*p.UserKey)
		}
		if p.IncludeMessage != nil {
			next.Pushover.IncludeMessage = *p.IncludeMessage
		}
	}
	next.Muted = h.deps.Mute.IsMuted()

	h.deps.Settings.Store(next)
	if err := h.persistLocked(); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodePersistFailed, "Settings applied but could not be saved", err)
		return
	}

	restart := next.BotToken != current.BotToken
	logging.Ctx(r.Context()).Info().
		Bool("pushover_enabled", next.Pushover.Enabled).
		Bool("token_changed", restart).
		Msg("Settings updated")
	respondSuccess(w, http.StatusOK, h.settingsView(restart))
}

func (h *Handler) settingsView(restart bool) SettingsView {
	s := h.deps.Settings.Load()
	s.Muted = h.deps.Mute.IsMuted()
	return SettingsView{
		Settings:        s.Redacted(logging.RedactSecret),
		RestartRequired: restart,
	}
}
