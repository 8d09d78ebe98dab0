// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package api

import "errors"

// Common API errors
var (
	// ErrIngestUnavailable indicates the event source does not accept
	// injected events.
	ErrIngestUnavailable = errors.New("event ingest is not available for this gateway mode")

	// ErrHistoryDisabled indicates the dispatch history store is not configured.
	ErrHistoryDisabled = errors.New("dispatch history is disabled")
)

// Error codes for API responses
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodePersistFailed      = "PERSIST_FAILED"
	ErrCodeSinkFailed         = "SINK_FAILED"
)
