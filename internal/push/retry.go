// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package push

import (
	"errors"
	"time"
)

// Clock abstracts time so retry waits can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// RetryPolicy decides whether and when to retry a failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy allows 3 attempts with 500ms, 1s waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Decide is a pure function of the attempt number that just failed
// (1-based), its error, and how many rate-limit responses have been seen so
// far including this one. It returns the wait before the next attempt and
// whether to make one.
//
// Transient errors retry with base*2^(attempt-1) capped at MaxDelay, until
// MaxAttempts is reached. A rate-limit response is transient only the first
// time. Everything else is final.
func (p RetryPolicy) Decide(attempt int, err error, rateLimited int) (time.Duration, bool) {
	if err == nil || attempt >= p.MaxAttempts {
		return 0, false
	}

	var ae *attemptError
	if !errors.As(err, &ae) {
		// Unclassified errors come from the transport layer: retryable.
		return p.backoff(attempt), true
	}
	if ae.rateLimited {
		if rateLimited > 1 {
			return 0, false
		}
		return p.backoff(attempt), true
	}
	if !ae.retryable {
		return 0, false
	}
	return p.backoff(attempt), true
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
