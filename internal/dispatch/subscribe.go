// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package dispatch

import (
	"context"
	"time"

	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/push"
	"github.com/tomtom215/talkalert/internal/sound"
)

// Subscribe returns a stream of dispatch results. Results are delivered
// without blocking: a subscriber whose buffer is full misses them. The
// returned cancel func closes the stream and is safe to call twice.
func (e *Engine) Subscribe(buf int) (<-chan models.DispatchResult, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan models.DispatchResult, buf)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (e *Engine) publish(r models.DispatchResult) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// TestSound plays path at volume now, ignoring mute. Used by the "test
// sound" action of the control surface.
func (e *Engine) TestSound(ctx context.Context, path string, volume int) models.Outcome {
	if e.sound == nil {
		return models.Skipped()
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SoundTimeout)
	defer cancel()

	start := time.Now()
	err := e.sound.Play(ctx, path, models.ClampVolume(volume))
	out := soundOutcome(err, time.Since(start))
	recordOutcome("sound", out)
	return out
}

// TestPush sends a fixed test notification with the current credentials,
// ignoring mute and the Enabled flag.
func (e *Engine) TestPush(ctx context.Context) models.Outcome {
	if e.pusher == nil {
		return models.Skipped()
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PushTimeout)
	defer cancel()

	settings := e.settings.Load()
	n := models.Notification{
		Title:   models.NotificationTitle,
		Message: "Test notification from TalkAlert",
	}

	start := time.Now()
	delivery, err := e.pusher.Send(ctx, n, settings.Pushover.Credentials())
	out := models.OutcomeFromError(err, delivery.Attempts, time.Since(start))
	recordOutcome("push", out)
	return out
}

// StopSound cuts off the current playback, if the sound sink supports it.
func (e *Engine) StopSound() {
	if s, ok := e.sound.(interface{ Stop() }); ok {
		s.Stop()
	}
}

var _ SoundPlayer = (*sound.Sink)(nil)
var _ Pusher = (*push.Sink)(nil)
