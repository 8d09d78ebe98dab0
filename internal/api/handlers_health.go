// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/talkalert/internal/dispatch"
	"github.com/tomtom215/talkalert/internal/models"
)

// HealthStatus is returned by GET /api/v1/health.
type HealthStatus struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime_seconds"`
}

// Health reports liveness. The process is "degraded" once the engine has
// stopped or while the gateway is offline.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if h.deps.Engine != nil && h.deps.Engine.State() == dispatch.StateStopped {
		status = "degraded"
	}
	if h.deps.Connection != nil && h.deps.Connection.State() == models.StateOffline {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, HealthStatus{
		Status: status,
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// Status reports engine state, gateway connection, mute and rule count.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := models.StatusResponse{
		Engine:     string(dispatch.StateIdle),
		Connection: models.StateOffline,
		Muted:      h.deps.Mute.IsMuted(),
		RuleCount:  h.deps.Rules.Len(),
		Version:    h.deps.Version,
	}
	if h.deps.Engine != nil {
		resp.Engine = string(h.deps.Engine.State())
	}
	if h.deps.Connection != nil {
		resp.Connection = h.deps.Connection.State()
	}
	if h.deps.Hub != nil {
		resp.Clients = h.deps.Hub.GetClientCount()
	}
	respondSuccess(w, http.StatusOK, resp)
}
