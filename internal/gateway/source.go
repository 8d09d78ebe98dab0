// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package gateway adapts chat transports into a stream of inbound events.
//
// Every Source is single-use: Connect returns a channel that yields events
// until the context is cancelled (or the transport gives up), then closes.
// Reconnects are handled inside the source and surface only as connection
// state changes.
package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

// ErrAlreadyConnected is returned by a second Connect call.
var ErrAlreadyConnected = errors.New("event source already connected")

// Source is a non-restartable producer of inbound events.
type Source interface {
	Connect(ctx context.Context) (<-chan models.InboundEvent, error)
}

// StateFunc observes connection state changes. err is the cause of a drop
// to offline, if any.
type StateFunc func(state models.ConnectionState, err error)

// StateTracker records the connection state of a source and fans changes
// out to observers. The zero value is offline.
type StateTracker struct {
	mu    sync.RWMutex
	state models.ConnectionState
	hooks []StateFunc
}

// OnStateChange registers fn. Hooks run synchronously on the source's
// goroutine and must not block.
func (t *StateTracker) OnStateChange(fn StateFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// State returns the current connection state.
func (t *StateTracker) State() models.ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == "" {
		return models.StateOffline
	}
	return t.state
}

func (t *StateTracker) set(state models.ConnectionState, err error) {
	t.mu.Lock()
	if t.state == state && err == nil {
		t.mu.Unlock()
		return
	}
	t.state = state
	hooks := make([]StateFunc, len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.Unlock()

	metrics.GatewayState.Set(stateValue(state))
	for _, fn := range hooks {
		fn(state, err)
	}
}

func stateValue(s models.ConnectionState) float64 {
	switch s {
	case models.StateConnecting:
		return 1
	case models.StateOnline:
		return 2
	default:
		return 0
	}
}

// Disconnected wraps a transport error as a Disconnected sink error for
// status reporting.
func Disconnected(err error) error {
	if err == nil {
		return nil
	}
	return models.NewSinkError(models.KindDisconnected, "gateway", err)
}
