// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/talkalert/internal/gateway"
	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/validation"
)

// TestSoundRequest selects what to play: a stored rule's sound, or an
// explicit path. Volume overrides the rule volume when set.
type TestSoundRequest struct {
	RuleID    string `json:"rule_id" validate:"required_without=SoundPath,max=64"`
	SoundPath string `json:"sound_path" validate:"required_without=RuleID,max=4096,soundfile"`
	Volume    *int   `json:"volume" validate:"omitempty,min=0,max=100"`
}

// TestSound plays a sound now, ignoring mute.
func (h *Handler) TestSound(w http.ResponseWriter, r *http.Request) {
	var req TestSoundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	path, volume := req.SoundPath, models.DefaultVolume
	if req.RuleID != "" {
		rule, ok := h.findRule(req.RuleID)
		if !ok {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Rule not found", nil)
			return
		}
		if rule.SoundPath == "" {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Rule has no sound", nil)
			return
		}
		path, volume = rule.SoundPath, rule.VolumeOrDefault()
	}
	if req.Volume != nil {
		volume = *req.Volume
	}

	out := h.deps.Engine.TestSound(r.Context(), path, volume)
	logging.Ctx(r.Context()).Info().
		Str("status", string(out.Status)).
		Str("kind", string(out.Kind)).
		Msg("Test sound")
	h.respondOutcome(w, out)
}

// TestPush sends a test notification with the saved credentials.
func (h *Handler) TestPush(w http.ResponseWriter, r *http.Request) {
	out := h.deps.Engine.TestPush(r.Context())
	logging.Ctx(r.Context()).Info().
		Str("status", string(out.Status)).
		Str("kind", string(out.Kind)).
		Int("attempts", out.Attempts).
		Msg("Test push")
	h.respondOutcome(w, out)
}

func (h *Handler) respondOutcome(w http.ResponseWriter, out models.Outcome) {
	status := outcomeStatus(out)
	if status == http.StatusOK {
		respondSuccess(w, status, out)
		return
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Data:     out,
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    ErrCodeSinkFailed,
			Message: out.Error,
			Details: map[string]interface{}{"kind": out.Kind, "status": out.Status},
		},
	})
}

func (h *Handler) findRule(id string) (models.Rule, bool) {
	for _, rule := range h.deps.Rules.Snapshot() {
		if rule.ID == id {
			return rule, true
		}
	}
	return models.Rule{}, false
}

// InjectEvent hands an event to the gateway as if it had arrived on the
// chat connection.
func (h *Handler) InjectEvent(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ingest == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, ErrIngestUnavailable.Error(), nil)
		return
	}

	var ev models.InboundEvent
	if !decodeBody(w, r, &ev) {
		return
	}
	if verr := validation.ValidateStruct(&ev); verr != nil {
		respondValidationError(w, verr)
		return
	}

	if err := h.deps.Ingest.Publish(ev); err != nil {
		switch {
		case errors.Is(err, gateway.ErrFeedFull):
			respondError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Event buffer full", nil)
		case errors.Is(err, gateway.ErrFeedClosed):
			respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event source is not running", nil)
		default:
			respondError(w, http.StatusBadGateway, ErrCodeServiceUnavailable, "Failed to publish event", err)
		}
		return
	}
	respondSuccess(w, http.StatusAccepted, map[string]string{"author_user_id": ev.AuthorUserID})
}

// History returns recent dispatch results, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, ErrHistoryDisabled.Error(), nil)
		return
	}
	// Non-positive limits fall back to the store's configured default.
	limit := getIntParam(r, "limit", 0)
	if limit < 0 {
		limit = 0
	}

	results, err := h.deps.History.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read history", err)
		return
	}
	respondSuccess(w, http.StatusOK, results)
}
