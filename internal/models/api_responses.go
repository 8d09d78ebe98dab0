// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package models

import "time"

// APIResponse is the envelope for every control API response.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable error code plus a message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ConnectionState is the gateway connection status shown to the user.
type ConnectionState string

// Connection states.
const (
	StateOffline    ConnectionState = "offline"
	StateConnecting ConnectionState = "connecting"
	StateOnline     ConnectionState = "online"
)

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Engine     string          `json:"engine"`
	Connection ConnectionState `json:"connection"`
	Muted      bool            `json:"muted"`
	RuleCount  int             `json:"rule_count"`
	Clients    int             `json:"ws_clients"`
	Version    string          `json:"version"`
}
