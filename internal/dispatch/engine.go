// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package dispatch matches inbound chat events against the rule table and
// fans matches out to the notification sinks.
//
// One goroutine consumes the event source. Every matched event starts one
// goroutine per sink, each bounded by its own timeout; the consumer never
// waits on them. Results are joined off the hot path and published to
// subscribers for status display only.
//
// Lifecycle: Idle -> Running -> Stopped. Stopped is terminal; a stopped
// engine cannot be restarted because event sources are single-use.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/talkalert/internal/gateway"
	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/push"
	"github.com/tomtom215/talkalert/internal/rules"
	"github.com/tomtom215/talkalert/internal/sound"
)

var (
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("dispatch engine already running")

	// ErrEngineStopped is returned by Start after Stop.
	ErrEngineStopped = errors.New("dispatch engine stopped")
)

// State is the engine lifecycle state.
type State string

// Engine states.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

func (s State) metricValue() float64 {
	switch s {
	case StateRunning:
		return 1
	case StateStopped:
		return 2
	default:
		return 0
	}
}

// SoundPlayer plays a clip and blocks until it ends.
type SoundPlayer interface {
	Play(ctx context.Context, path string, volume int) error
}

// Pusher delivers a push notification.
type Pusher interface {
	Send(ctx context.Context, n models.Notification, creds models.PushCredentials) (push.Delivery, error)
}

// Config bounds the engine's sink calls.
type Config struct {
	SoundTimeout time.Duration
	PushTimeout  time.Duration
	DrainTimeout time.Duration
	// PushSlots caps concurrent push deliveries; extra pushes are dropped.
	PushSlots int
	// PushRatePerMinute throttles push deliveries. Zero disables it.
	PushRatePerMinute int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SoundTimeout: 30 * time.Second,
		PushTimeout:  45 * time.Second,
		DrainTimeout: 5 * time.Second,
		PushSlots:    4,
	}
}

// Engine is the dispatch engine.
type Engine struct {
	cfg      Config
	rules    *rules.Table
	mute     *MuteSwitch
	settings *SettingsRef
	sound    SoundPlayer
	pusher   Pusher
	limiter  *rate.Limiter
	slots    chan struct{}

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	sinkCancel context.CancelFunc
	done       chan struct{}
	doneOnce   sync.Once
	drainOnce  sync.Once
	drainErr   error
	inflight   sync.WaitGroup

	subMu   sync.RWMutex
	subs    map[uint64]chan models.DispatchResult
	nextSub uint64
}

// NewEngine wires an engine. sound or pusher may be nil to disable that
// sink entirely; a nil sink always reports a skipped outcome.
func NewEngine(cfg Config, table *rules.Table, mute *MuteSwitch, settings *SettingsRef, sound SoundPlayer, pusher Pusher) *Engine {
	if cfg.PushSlots < 1 {
		cfg.PushSlots = 1
	}
	e := &Engine{
		cfg:      cfg,
		rules:    table,
		mute:     mute,
		settings: settings,
		sound:    sound,
		pusher:   pusher,
		slots:    make(chan struct{}, cfg.PushSlots),
		state:    StateIdle,
		done:     make(chan struct{}),
		subs:     make(map[uint64]chan models.DispatchResult),
	}
	if cfg.PushRatePerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PushRatePerMinute)), cfg.PushRatePerMinute)
	}
	metrics.EngineState.Set(StateIdle.metricValue())
	return e
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Done is closed once the consumer loop has exited, or on Stop from Idle.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) setStateLocked(s State) {
	e.state = s
	metrics.EngineState.Set(s.metricValue())
}

// Start connects src and begins consuming events. If Connect fails the
// engine stays Idle. Sink calls are not cancelled by ctx; they are
// bounded by their own timeouts and by Stop.
func (e *Engine) Start(ctx context.Context, src gateway.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrEngineStopped
	}

	loopCtx, cancel := context.WithCancel(ctx)
	events, err := src.Connect(loopCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("connect event source: %w", err)
	}

	sinkCtx, sinkCancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.sinkCancel = sinkCancel
	e.setStateLocked(StateRunning)

	go e.loop(loopCtx, sinkCtx, events)

	logging.Info().Msg("Dispatch engine started")
	return nil
}

func (e *Engine) closeDone() {
	e.doneOnce.Do(func() { close(e.done) })
}

func (e *Engine) loop(ctx, sinkCtx context.Context, events <-chan models.InboundEvent) {
	sourceClosed := false
	defer e.closeDone()
	defer func() {
		// A source that ends on its own cannot be reconnected.
		e.mu.Lock()
		if e.state == StateRunning {
			e.setStateLocked(StateStopped)
			if sourceClosed {
				logging.Warn().Msg("Event source closed, dispatch engine stopped")
			} else {
				logging.Info().Msg("Dispatch engine stopped (context canceled)")
			}
		}
		e.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// Sources also close their channel once ctx ends.
				sourceClosed = ctx.Err() == nil
				return
			}
			e.handle(sinkCtx, ev)
		}
	}
}

// Stop cancels the consumer loop and waits for in-flight sink calls, up to
// the drain timeout. Calls after the first return the first call's result.
// ctx bounds the wait for the caller only.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	prev := e.state
	e.setStateLocked(StateStopped)
	cancel := e.cancel
	e.mu.Unlock()

	if prev == StateIdle {
		e.closeDone()
	}
	if cancel != nil {
		cancel()
	}

	e.drainOnce.Do(func() {
		e.drainErr = e.drain(ctx)
		logging.Info().Err(e.drainErr).Msg("Dispatch engine stopped")
	})
	return e.drainErr
}

func (e *Engine) drain(ctx context.Context) error {
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	drained := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(drained)
	}()

	timer := time.NewTimer(e.cfg.DrainTimeout)
	defer timer.Stop()

	select {
	case <-drained:
	case <-timer.C:
		logging.Warn().Dur("drain_timeout", e.cfg.DrainTimeout).Msg("Sink calls still running at shutdown, cancelling")
	case <-ctx.Done():
		e.cancelSinks()
		return ctx.Err()
	}
	e.cancelSinks()
	return nil
}

func (e *Engine) cancelSinks() {
	e.mu.Lock()
	sinkCancel := e.sinkCancel
	e.mu.Unlock()
	if sinkCancel != nil {
		sinkCancel()
	}
}

// handle processes one event. It never blocks on a sink.
func (e *Engine) handle(ctx context.Context, ev models.InboundEvent) {
	metrics.EventsReceived.Inc()

	if e.mute.IsMuted() {
		metrics.EventsIgnored.WithLabelValues("muted").Inc()
		e.publish(models.DispatchResult{
			ID:         uuid.NewString(),
			Event:      ev,
			Suppressed: true,
			Sound:      models.Skipped(),
			Push:       models.Skipped(),
			At:         time.Now().UTC(),
		})
		return
	}

	if ev.AuthorIsBot {
		metrics.EventsIgnored.WithLabelValues("bot").Inc()
		return
	}

	rule, ok := e.rules.Lookup(ev.AuthorUserID)
	if !ok {
		metrics.EventsIgnored.WithLabelValues("no_match").Inc()
		logging.Debug().Str("author_user_id", ev.AuthorUserID).Msg("No rule for author")
		return
	}
	metrics.RuleMatches.Inc()

	logging.Info().
		Str("rule_id", rule.ID).
		Str("rule", rule.DisplayName()).
		Str("where", ev.Where()).
		Msg("Alert rule matched")

	result := &models.DispatchResult{
		ID:    uuid.NewString(),
		Event: ev,
		Rule:  &rule,
		Sound: models.Skipped(),
		Push:  models.Skipped(),
		At:    time.Now().UTC(),
	}

	var join sync.WaitGroup
	e.dispatchSound(ctx, &join, result, &rule)
	e.dispatchPush(ctx, &join, result, &ev, &rule)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		join.Wait()
		e.publish(*result)
	}()
}

func (e *Engine) dispatchSound(ctx context.Context, join *sync.WaitGroup, result *models.DispatchResult, rule *models.Rule) {
	if e.sound == nil || rule.SoundPath == "" {
		return
	}

	path, volume := rule.SoundPath, rule.VolumeOrDefault()
	join.Add(1)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer join.Done()

		metrics.SinksInFlight.WithLabelValues("sound").Inc()
		defer metrics.SinksInFlight.WithLabelValues("sound").Dec()

		sctx, cancel := context.WithTimeout(ctx, e.cfg.SoundTimeout)
		defer cancel()

		start := time.Now()
		err := e.sound.Play(sctx, path, volume)
		result.Sound = soundOutcome(err, time.Since(start))
		recordOutcome("sound", result.Sound)

		if result.Sound.Status == models.StatusFailed {
			logging.Warn().Err(err).
				Str("kind", string(result.Sound.Kind)).
				Str("path", path).
				Msg("Sound alert failed")
		}
	}()
}

func soundOutcome(err error, d time.Duration) models.Outcome {
	if errors.Is(err, sound.ErrInterrupted) {
		return models.Outcome{Status: models.StatusInterrupted, Attempts: 1, Duration: d}
	}
	return models.OutcomeFromError(err, 1, d)
}

func (e *Engine) dispatchPush(ctx context.Context, join *sync.WaitGroup, result *models.DispatchResult, ev *models.InboundEvent, rule *models.Rule) {
	settings := e.settings.Load()
	if e.pusher == nil || !settings.Pushover.Enabled {
		return
	}

	if e.limiter != nil && !e.limiter.Allow() {
		e.dropPush(result, "rate_limited")
		return
	}

	select {
	case e.slots <- struct{}{}:
	default:
		e.dropPush(result, "queue_full")
		return
	}

	n := models.NewNotification(ev, rule, settings.Pushover.IncludeMessage)
	creds := settings.Pushover.Credentials()

	join.Add(1)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer join.Done()
		defer func() { <-e.slots }()

		metrics.SinksInFlight.WithLabelValues("push").Inc()
		defer metrics.SinksInFlight.WithLabelValues("push").Dec()

		pctx, cancel := context.WithTimeout(ctx, e.cfg.PushTimeout)
		defer cancel()

		start := time.Now()
		delivery, err := e.pusher.Send(pctx, n, creds)
		result.Push = models.OutcomeFromError(err, delivery.Attempts, time.Since(start))
		recordOutcome("push", result.Push)

		if err != nil {
			logging.Warn().Err(err).
				Str("kind", string(result.Push.Kind)).
				Int("attempts", delivery.Attempts).
				Msg("Push alert failed")
		}
	}()
}

func (e *Engine) dropPush(result *models.DispatchResult, reason string) {
	metrics.PushDropped.WithLabelValues(reason).Inc()
	result.Push = models.Outcome{Status: models.StatusDropped, Error: reason}
	recordOutcome("push", result.Push)
	logging.Warn().Str("reason", reason).Msg("Push notification dropped")
}

func recordOutcome(sink string, o models.Outcome) {
	metrics.RecordSinkOutcome(sink, string(o.Status), string(o.Kind), o.Duration)
}
