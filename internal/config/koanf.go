// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"talkalert.yaml",
	"talkalert.yml",
	"/etc/talkalert/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// PushoverEndpoint is the Pushover message API.
const PushoverEndpoint = "https://api.pushover.net/1/messages.json"

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8747,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Gateway: GatewayConfig{
			Mode:              GatewayModeFeed,
			URL:               "",
			Token:             "",
			HandshakeTimeout:  10 * time.Second,
			ReconnectInitial:  time.Second,
			ReconnectMax:      time.Minute,
			NATSURL:           "nats://127.0.0.1:4222",
			NATSSubject:       "talkalert.events",
			NATSQueueGroup:    "talkalert",
			NATSAckWait:       30 * time.Second,
			NATSCloseTimeout:  10 * time.Second,
			NATSEmbedded:      false,
			NATSEmbeddedHost:  "127.0.0.1",
			NATSEmbeddedPort:  4222,
			FeedBuffer:        64,
			EventChannelDepth: 64,
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
			BufferMS:   100,
		},
		Push: PushConfig{
			Endpoint:         PushoverEndpoint,
			AttemptTimeout:   10 * time.Second,
			MaxAttempts:      3,
			BaseDelay:        500 * time.Millisecond,
			MaxDelay:         5 * time.Second,
			QueueDepth:       4,
			RatePerMinute:    0, // unlimited
			BreakerFailures:  5,
			BreakerOpenDelay: time.Minute,
		},
		Engine: EngineConfig{
			SoundTimeout:     30 * time.Second,
			PushTimeout:      45 * time.Second,
			DrainTimeout:     5 * time.Second,
			SubscriberBuffer: 32,
		},
		History: HistoryConfig{
			Enabled:  true,
			Path:     "data/history",
			InMemory: false,
			TTL:      7 * 24 * time.Hour,
			Limit:    200,
		},
		State: StateConfig{
			Path: "config.json",
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	"gateway_mode":              "gateway.mode",
	"gateway_url":               "gateway.url",
	"gateway_token":             "gateway.token",
	"bot_token":                 "gateway.token",
	"gateway_handshake_timeout": "gateway.handshake_timeout",
	"gateway_reconnect_initial": "gateway.reconnect_initial",
	"gateway_reconnect_max":     "gateway.reconnect_max",
	"nats_url":                  "gateway.nats_url",
	"nats_subject":              "gateway.nats_subject",
	"nats_queue_group":          "gateway.nats_queue_group",
	"nats_ack_wait":             "gateway.nats_ack_wait",
	"nats_embedded":             "gateway.nats_embedded",
	"nats_embedded_host":        "gateway.nats_embedded_host",
	"nats_embedded_port":        "gateway.nats_embedded_port",
	"feed_buffer":               "gateway.feed_buffer",

	"audio_enabled":     "audio.enabled",
	"audio_sample_rate": "audio.sample_rate",
	"audio_buffer_ms":   "audio.buffer_ms",

	"pushover_endpoint":        "push.endpoint",
	"push_attempt_timeout":     "push.attempt_timeout",
	"push_max_attempts":        "push.max_attempts",
	"push_base_delay":          "push.base_delay",
	"push_max_delay":           "push.max_delay",
	"push_queue_depth":         "push.queue_depth",
	"push_rate_per_minute":     "push.rate_per_minute",
	"push_breaker_failures":    "push.breaker_failures",
	"push_breaker_open_delay":  "push.breaker_open_delay",
	"engine_sound_timeout":     "engine.sound_timeout",
	"engine_push_timeout":      "engine.push_timeout",
	"engine_drain_timeout":     "engine.drain_timeout",
	"engine_subscriber_buffer": "engine.subscriber_buffer",

	"history_enabled":   "history.enabled",
	"history_path":      "history.path",
	"history_in_memory": "history.in_memory",
	"history_ttl":       "history.ttl",
	"history_limit":     "history.limit",

	"state_path": "state.path",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unknown variables map to "" and are ignored.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - PUSHOVER_ENDPOINT -> push.endpoint
//   - GATEWAY_MODE -> gateway.mode
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
