// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package config holds the process configuration for TalkAlert.
//
// Process configuration (ports, timeouts, transports) is layered with koanf:
// built-in defaults, then an optional YAML file, then environment variables.
// User-editable state (rules, Pushover credentials, mute) is not part of this
// package; it lives in the JSON state file handled by internal/store.
package config

import (
	"net"
	"strconv"
	"time"
)

// Gateway modes.
const (
	GatewayModeWebSocket = "websocket"
	GatewayModeNATS      = "nats"
	GatewayModeFeed      = "feed"
)

// Config is the complete process configuration.
type Config struct {
	Logging LoggingConfig `koanf:"logging"`
	Server  ServerConfig  `koanf:"server"`
	Gateway GatewayConfig `koanf:"gateway"`
	Audio   AudioConfig   `koanf:"audio"`
	Push    PushConfig    `koanf:"push"`
	Engine  EngineConfig  `koanf:"engine"`
	History HistoryConfig `koanf:"history"`
	State   StateConfig   `koanf:"state"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// GatewayConfig selects and configures the inbound event source.
//
// The bot token is user state and comes from the state file; Token here is
// an operator override (e.g. from a secret mount) and wins when set.
type GatewayConfig struct {
	Mode              string        `koanf:"mode"`
	URL               string        `koanf:"url"`
	Token             string        `koanf:"token"`
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout"`
	ReconnectInitial  time.Duration `koanf:"reconnect_initial"`
	ReconnectMax      time.Duration `koanf:"reconnect_max"`
	NATSURL           string        `koanf:"nats_url"`
	NATSSubject       string        `koanf:"nats_subject"`
	NATSQueueGroup    string        `koanf:"nats_queue_group"`
	NATSAckWait       time.Duration `koanf:"nats_ack_wait"`
	NATSCloseTimeout  time.Duration `koanf:"nats_close_timeout"`
	NATSEmbedded      bool          `koanf:"nats_embedded"`
	NATSEmbeddedHost  string        `koanf:"nats_embedded_host"`
	NATSEmbeddedPort  int           `koanf:"nats_embedded_port"`
	FeedBuffer        int           `koanf:"feed_buffer"`
	EventChannelDepth int           `koanf:"event_channel_depth"`
}

// AudioConfig configures the local sound sink.
type AudioConfig struct {
	Enabled    bool `koanf:"enabled"`
	SampleRate int  `koanf:"sample_rate"`
	BufferMS   int  `koanf:"buffer_ms"`
}

// PushConfig configures the Pushover sink.
type PushConfig struct {
	Endpoint         string        `koanf:"endpoint"`
	AttemptTimeout   time.Duration `koanf:"attempt_timeout"`
	MaxAttempts      int           `koanf:"max_attempts"`
	BaseDelay        time.Duration `koanf:"base_delay"`
	MaxDelay         time.Duration `koanf:"max_delay"`
	QueueDepth       int           `koanf:"queue_depth"`
	RatePerMinute    int           `koanf:"rate_per_minute"`
	BreakerFailures  uint32        `koanf:"breaker_failures"`
	BreakerOpenDelay time.Duration `koanf:"breaker_open_delay"`
}

// EngineConfig bounds the dispatch engine's sink calls.
type EngineConfig struct {
	SoundTimeout     time.Duration `koanf:"sound_timeout"`
	PushTimeout      time.Duration `koanf:"push_timeout"`
	DrainTimeout     time.Duration `koanf:"drain_timeout"`
	SubscriberBuffer int           `koanf:"subscriber_buffer"`
}

// HistoryConfig configures the dispatch history store.
type HistoryConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Path     string        `koanf:"path"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"`
	Limit    int           `koanf:"limit"`
}

// StateConfig locates the persisted rules and settings.
type StateConfig struct {
	Path string `koanf:"path"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
