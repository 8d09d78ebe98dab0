// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies sink and gateway failures.
type ErrorKind string

// Error kinds. Sound: NotFound, DecodeFailure, DeviceError. Push:
// InvalidCredentials, Rejected, DeliveryFailed, Timeout. Gateway:
// Disconnected.
const (
	KindNone               ErrorKind = ""
	KindNotFound           ErrorKind = "not_found"
	KindDecodeFailure      ErrorKind = "decode_failure"
	KindDeviceError        ErrorKind = "device_error"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindRejected           ErrorKind = "rejected"
	KindDeliveryFailed     ErrorKind = "delivery_failed"
	KindTimeout            ErrorKind = "timeout"
	KindDisconnected       ErrorKind = "disconnected"
)

// SinkError is an error tagged with its ErrorKind.
type SinkError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewSinkError wraps err with kind and operation name.
func NewSinkError(kind ErrorKind, op string, err error) *SinkError {
	return &SinkError{Kind: kind, Op: op, Err: err}
}

func (e *SinkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind of err. Context deadline errors map to
// KindTimeout; any other unclassified error maps to KindDeliveryFailed.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var se *SinkError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindDeliveryFailed
}

// OutcomeStatus is the result of one sink invocation.
type OutcomeStatus string

// Outcome statuses.
const (
	StatusSkipped     OutcomeStatus = "skipped"
	StatusOK          OutcomeStatus = "ok"
	StatusFailed      OutcomeStatus = "failed"
	StatusDropped     OutcomeStatus = "dropped"
	StatusInterrupted OutcomeStatus = "interrupted"
)

// Outcome records what happened at one sink.
type Outcome struct {
	Status   OutcomeStatus `json:"status"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Skipped is the outcome of a sink that was not invoked.
func Skipped() Outcome {
	return Outcome{Status: StatusSkipped}
}

// OutcomeFromError builds an Outcome from a sink return value.
func OutcomeFromError(err error, attempts int, d time.Duration) Outcome {
	if err == nil {
		return Outcome{Status: StatusOK, Attempts: attempts, Duration: d}
	}
	return Outcome{
		Status:   StatusFailed,
		Kind:     KindOf(err),
		Error:    err.Error(),
		Attempts: attempts,
		Duration: d,
	}
}

// DispatchResult is reported to observers after an event was handled.
// It is never used for control flow.
type DispatchResult struct {
	ID         string       `json:"id"`
	Event      InboundEvent `json:"event"`
	Rule       *Rule        `json:"rule,omitempty"`
	Suppressed bool         `json:"suppressed"`
	Sound      Outcome      `json:"sound"`
	Push       Outcome      `json:"push"`
	At         time.Time    `json:"at"`
}

// Matched reports whether a rule matched the event.
func (r *DispatchResult) Matched() bool {
	return r.Rule != nil
}
