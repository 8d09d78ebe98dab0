// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/talkalert/internal/logging"
	ws "github.com/tomtom215/talkalert/internal/websocket"
)

// WebSocket upgrades the connection and subscribes it to live updates.
// The client first receives the current connection state and mute flag.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.deps.Hub, conn)
	if h.deps.Connection != nil {
		client.Send(ws.Message{
			Type: ws.MessageTypeConnectionState,
			Data: ws.ConnectionStateData{
				State:     h.deps.Connection.State(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		})
	}
	client.Send(ws.Message{
		Type: ws.MessageTypeMuteChanged,
		Data: ws.MuteChangedData{Muted: h.deps.Mute.IsMuted()},
	})

	h.deps.Hub.Register <- client
	client.Start()
	logging.Ctx(r.Context()).Debug().Str("session_id", client.SessionID()).Msg("WebSocket client attached")
}
