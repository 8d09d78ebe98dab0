// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package main is the entry point for the TalkAlert daemon.
//
// TalkAlert watches chat activity and, for every message whose author has
// an alert rule, plays a local sound and sends a Pushover notification.
//
// # Startup
//
//  1. Configuration: defaults, config.yaml, then environment (Koanf v2)
//  2. State: rules and settings from the state file
//  3. Sinks: the local speaker (if audio is enabled) and Pushover
//  4. Gateway: websocket, nats or feed event source
//  5. Dispatch engine, optional history store, WebSocket hub and HTTP API
//  6. Supervisor tree: everything long-running is started by suture
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The engine drains
// in-flight deliveries, the HTTP server finishes open requests, then the
// audio device, gateway and history store are closed.
//
// # Example
//
//	export GATEWAY_MODE=websocket
//	export GATEWAY_URL=wss://gateway.example.com/events
//	export BOT_TOKEN=bot-token
//	export HTTP_PORT=8787
//	./talkalert
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/talkalert/internal/config"
	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("gateway_mode", cfg.Gateway.Mode).
		Str("state_path", cfg.State.Path).
		Bool("audio", cfg.Audio.Enabled).
		Bool("history", cfg.History.Enabled).
		Msg("Starting TalkAlert")

	app, err := newApp(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		app.close()
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	app.register(tree)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	app.close()
	logging.Info().Msg("TalkAlert stopped")
}
