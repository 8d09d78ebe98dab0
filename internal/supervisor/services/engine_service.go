// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/talkalert/internal/dispatch"
	"github.com/tomtom215/talkalert/internal/gateway"
	"github.com/tomtom215/talkalert/internal/logging"
)

// Engine is the lifecycle subset of *dispatch.Engine.
type Engine interface {
	Start(ctx context.Context, src gateway.Source) error
	Stop(ctx context.Context) error
	Done() <-chan struct{}
}

// EngineService drives the dispatch engine under suture.
//
// A Start failure (the source could not connect) leaves the engine Idle
// and is returned so suture retries with backoff. Once the engine has
// stopped, because its source ended or it was stopped elsewhere, the
// service returns suture.ErrDoNotRestart. Cancelling ctx stops the
// engine and waits up to stopTimeout for in-flight deliveries.
type EngineService struct {
	engine      Engine
	source      gateway.Source
	stopTimeout time.Duration
	name        string
}

// NewEngineService wraps engine. A non-positive stopTimeout uses 10s.
func NewEngineService(engine Engine, source gateway.Source, stopTimeout time.Duration) *EngineService {
	if stopTimeout <= 0 {
		stopTimeout = defaultShutdownTimeout
	}
	return &EngineService{
		engine:      engine,
		source:      source,
		stopTimeout: stopTimeout,
		name:        "dispatch-engine",
	}
}

// Serve implements suture.Service.
func (s *EngineService) Serve(ctx context.Context) error {
	if err := s.engine.Start(ctx, s.source); err != nil {
		if errors.Is(err, dispatch.ErrEngineStopped) {
			return suture.ErrDoNotRestart
		}
		logging.Warn().Err(err).Str("service", s.name).Msg("Dispatch engine failed to start")
		return err
	}

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
		defer cancel()
		if err := s.engine.Stop(stopCtx); err != nil {
			logging.Warn().Err(err).Str("service", s.name).Msg("Dispatch engine drain incomplete")
		}
		return ctx.Err()

	case <-s.engine.Done():
		logging.Info().Str("service", s.name).Msg("Event source ended, dispatch engine stopped")
		return suture.ErrDoNotRestart
	}
}

// String implements fmt.Stringer.
func (s *EngineService) String() string {
	return s.name
}
