// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tomtom215/talkalert/internal/models"
)

// ErrFeedFull is returned by Publish when the buffer is full.
var ErrFeedFull = errors.New("event feed buffer full")

// ErrFeedClosed is returned by Publish after the feed's stream ended.
var ErrFeedClosed = errors.New("event feed closed")

// Feed is an in-process Source. Events are injected with Publish, e.g. by
// the HTTP ingest endpoint or a bridge process.
type Feed struct {
	StateTracker

	in        chan models.InboundEvent
	connected atomic.Bool
	done      chan struct{}
}

// NewFeed creates a feed holding up to buffer unconsumed events.
func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{
		in:   make(chan models.InboundEvent, buffer),
		done: make(chan struct{}),
	}
}

// Connect implements Source.
func (f *Feed) Connect(ctx context.Context) (<-chan models.InboundEvent, error) {
	if !f.connected.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConnected
	}

	out := make(chan models.InboundEvent)
	f.set(models.StateOnline, nil)

	go func() {
		defer close(out)
		defer close(f.done)
		defer f.set(models.StateOffline, nil)

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-f.in:
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Publish enqueues e without blocking. A zero timestamp is set to now.
func (f *Feed) Publish(e models.InboundEvent) error {
	select {
	case <-f.done:
		return ErrFeedClosed
	default:
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case f.in <- e:
		return nil
	default:
		return ErrFeedFull
	}
}
