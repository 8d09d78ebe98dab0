// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/talkalert/internal/api"
	"github.com/tomtom215/talkalert/internal/config"
	"github.com/tomtom215/talkalert/internal/dispatch"
	"github.com/tomtom215/talkalert/internal/gateway"
	"github.com/tomtom215/talkalert/internal/history"
	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
	"github.com/tomtom215/talkalert/internal/push"
	"github.com/tomtom215/talkalert/internal/rules"
	"github.com/tomtom215/talkalert/internal/sound"
	"github.com/tomtom215/talkalert/internal/store"
	"github.com/tomtom215/talkalert/internal/supervisor"
	"github.com/tomtom215/talkalert/internal/supervisor/services"
	ws "github.com/tomtom215/talkalert/internal/websocket"
)

// app holds every long-lived component.
type app struct {
	cfg *config.Config

	engine  *dispatch.Engine
	gateway *gateway.Gateway
	hub     *ws.Hub
	history *history.Store
	sound   *sound.Sink
	client  *http.Client
	server  *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, hub: ws.NewHub(), client: &http.Client{}}

	st := store.New(cfg.State.Path)
	ruleSet, settings, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	logging.Info().Int("rules", len(ruleSet)).Str("path", st.Path()).Msg("State loaded")

	table := rules.NewTable(ruleSet)
	metrics.RulesActive.Set(float64(table.Len()))
	table.OnChange(func(rs models.RuleSet) {
		metrics.RulesActive.Set(float64(len(rs)))
		a.hub.BroadcastRulesChanged(len(rs))
	})

	mute := dispatch.NewMuteSwitch(settings.Muted)
	settingsRef := dispatch.NewSettingsRef(settings)

	var player dispatch.SoundPlayer
	if cfg.Audio.Enabled {
		device := sound.NewSpeakerDevice(cfg.Audio.SampleRate, time.Duration(cfg.Audio.BufferMS)*time.Millisecond)
		a.sound = sound.NewSink(sound.FileDecoder{}, device)
		player = a.sound
	} else {
		logging.Info().Msg("Audio disabled, sound alerts will be skipped")
	}

	pusher := push.NewSink(push.Config{
		Endpoint:       cfg.Push.Endpoint,
		AttemptTimeout: cfg.Push.AttemptTimeout,
		Retry: push.RetryPolicy{
			MaxAttempts: cfg.Push.MaxAttempts,
			BaseDelay:   cfg.Push.BaseDelay,
			MaxDelay:    cfg.Push.MaxDelay,
		},
		BreakerFailures:  cfg.Push.BreakerFailures,
		BreakerOpenDelay: cfg.Push.BreakerOpenDelay,
	}, a.client, nil)

	a.gateway, err = gateway.New(&cfg.Gateway, settings.BotToken)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}
	a.gateway.State.OnStateChange(a.hub.BroadcastConnectionState)

	a.engine = dispatch.NewEngine(dispatch.Config{
		SoundTimeout:      cfg.Engine.SoundTimeout,
		PushTimeout:       cfg.Engine.PushTimeout,
		DrainTimeout:      cfg.Engine.DrainTimeout,
		PushSlots:         cfg.Push.QueueDepth,
		PushRatePerMinute: cfg.Push.RatePerMinute,
	}, table, mute, settingsRef, player, pusher)

	mute.OnChange(func(muted bool) {
		if muted {
			a.engine.StopSound()
		}
		a.hub.BroadcastMute(muted)
	})

	deps := api.Deps{
		Rules:       table,
		Mute:        mute,
		Settings:    settingsRef,
		Engine:      a.engine,
		Store:       st,
		Connection:  a.gateway.State,
		Ingest:      a.gateway.Ingest,
		Hub:         a.hub,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	}

	if cfg.History.Enabled {
		a.history, err = history.Open(history.Config{
			Path:     cfg.History.Path,
			InMemory: cfg.History.InMemory,
			TTL:      cfg.History.TTL,
			Limit:    cfg.History.Limit,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		deps.History = a.history
	}

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	if cfg.Server.RateLimitRequests > 0 {
		mw.RateLimitRequests = cfg.Server.RateLimitRequests
	}
	if cfg.Server.RateLimitWindow > 0 {
		mw.RateLimitWindow = cfg.Server.RateLimitWindow
	}
	mw.RateLimitDisabled = cfg.Server.RateLimitDisabled

	router := api.NewRouter(api.NewHandler(deps), mw)
	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// register adds the app's services to the supervisor tree.
func (a *app) register(tree *supervisor.SupervisorTree) {
	buffer := a.cfg.Engine.SubscriberBuffer

	tree.AddDispatchService(services.NewEngineService(a.engine, a.gateway.Source, a.cfg.Engine.DrainTimeout))
	if a.history != nil {
		tree.AddDispatchService(services.NewResultConsumerService("history-recorder", a.engine.Subscribe, a.history.Record, buffer))
	}

	tree.AddMessagingService(services.NewWebSocketHubService(a.hub))
	tree.AddMessagingService(services.NewResultConsumerService("result-forwarder", a.engine.Subscribe, a.hub.Forward, buffer))

	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout))
}

// close releases resources the supervisor does not own. The engine is
// stopped first so no sink call outlives its sink.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Engine.DrainTimeout+time.Second)
	defer cancel()

	if a.engine != nil {
		if err := a.engine.Stop(ctx); err != nil {
			logging.Warn().Err(err).Msg("Dispatch engine drain incomplete")
		}
	}
	if a.sound != nil {
		if err := a.sound.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing audio device")
		}
	}
	a.client.CloseIdleConnections()
	if a.gateway != nil {
		if err := a.gateway.Close(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error closing gateway")
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing history store")
		}
	}
}
