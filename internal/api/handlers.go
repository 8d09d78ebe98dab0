// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/talkalert/internal/dispatch"
	"github.com/tomtom215/talkalert/internal/gateway"
	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/rules"
	ws "github.com/tomtom215/talkalert/internal/websocket"
)

// Engine is the part of the dispatch engine the API drives.
type Engine interface {
	State() dispatch.State
	TestSound(ctx context.Context, path string, volume int) models.Outcome
	TestPush(ctx context.Context) models.Outcome
}

// StateStore persists rules and settings.
type StateStore interface {
	Save(rules models.RuleSet, settings models.Settings) error
}

// HistoryReader serves recent dispatch results.
type HistoryReader interface {
	Recent(limit int) ([]models.DispatchResult, error)
}

// Deps are the components the handlers operate on. Ingest, History and
// Hub are optional.
type Deps struct {
	Rules       *rules.Table
	Mute        *dispatch.MuteSwitch
	Settings    *dispatch.SettingsRef
	Engine      Engine
	Store       StateStore
	Connection  gateway.StateReporter
	Ingest      gateway.Publisher
	History     HistoryReader
	Hub         *ws.Hub
	CORSOrigins []string
	Version     string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_health.go: health and status
//   - handlers_rules.go: rule table CRUD
//   - handlers_settings.go: mute and settings
//   - handlers_actions.go: test actions, event injection, history
//   - handlers_websocket.go: live updates
type Handler struct {
	deps      Deps
	startTime time.Time

	// persistMu serializes mutate-then-save so the state file always
	// reflects the latest mutation.
	persistMu sync.Mutex
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
	}
}

// persistLocked writes the current rules and settings. The caller holds
// persistMu.
func (h *Handler) persistLocked() error {
	if h.deps.Store == nil {
		return nil
	}
	settings := h.deps.Settings.Load()
	settings.Muted = h.deps.Mute.IsMuted()
	return h.deps.Store.Save(h.deps.Rules.Snapshot(), settings)
}

// getUpgrader creates a WebSocket upgrader with origin checking and timeouts.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts same-host origins and the configured CORS
// origins. Requests without an Origin header come from non-browser
// clients and are allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range h.deps.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", logging.SanitizeValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
