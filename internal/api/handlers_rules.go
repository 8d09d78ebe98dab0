// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/rules"
	"github.com/tomtom215/talkalert/internal/validation"
)

// ListRules returns the rule set in order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.deps.Rules.Snapshot())
}

// ReplaceRules swaps in a whole new rule set.
func (h *Handler) ReplaceRules(w http.ResponseWriter, r *http.Request) {
	var set models.RuleSet
	if !decodeBody(w, r, &set) {
		return
	}
	for i := range set {
		if verr := validation.ValidateStruct(&set[i]); verr != nil {
			apiErr := verr.ToAPIError()
			respondError(w, http.StatusBadRequest, apiErr.Code, fmt.Sprintf("rule %d: %s", i, apiErr.Message), nil)
			return
		}
	}

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	stored := h.deps.Rules.ReplaceAll(set)
	if err := h.persistLocked(); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodePersistFailed, "Rules applied but could not be saved", err)
		return
	}
	logging.Ctx(r.Context()).Info().Int("rules", len(stored)).Msg("Rule set replaced")
	respondSuccess(w, http.StatusOK, stored)
}

// UpsertRule inserts a rule, or replaces the one with the same ID or user ID.
func (h *Handler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if !decodeBody(w, r, &rule) {
		return
	}
	if verr := validation.ValidateStruct(&rule); verr != nil {
		respondValidationError(w, verr)
		return
	}

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	stored, err := h.deps.Rules.Upsert(rule)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), nil)
		return
	}
	if err := h.persistLocked(); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodePersistFailed, "Rule applied but could not be saved", err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("rule_id", stored.ID).Str("user_id", stored.UserID).Msg("Rule saved")
	respondSuccess(w, http.StatusOK, stored)
}

// DeleteRule removes a rule by ID.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	if err := h.deps.Rules.Remove(id); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Rule not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete rule", err)
		return
	}
	if err := h.persistLocked(); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodePersistFailed, "Rule removed but change could not be saved", err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("rule_id", logging.SanitizeValue(id)).Msg("Rule deleted")
	respondSuccess(w, http.StatusOK, map[string]string{"id": id})
}
