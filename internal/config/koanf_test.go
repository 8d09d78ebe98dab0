// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns valid defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Gateway.Mode != GatewayModeFeed {
		t.Errorf("Gateway.Mode = %q, want feed", cfg.Gateway.Mode)
	}
	if cfg.Push.Endpoint != PushoverEndpoint {
		t.Errorf("Push.Endpoint = %q", cfg.Push.Endpoint)
	}
	if cfg.Push.MaxAttempts != 3 {
		t.Errorf("Push.MaxAttempts = %d, want 3", cfg.Push.MaxAttempts)
	}
	if cfg.Server.Addr() != "127.0.0.1:8747" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"GATEWAY_MODE", "gateway.mode"},
		{"BOT_TOKEN", "gateway.token"},
		{"PUSHOVER_ENDPOINT", "push.endpoint"},
		{"PUSH_MAX_ATTEMPTS", "push.max_attempts"},
		{"HISTORY_IN_MEMORY", "history.in_memory"},
		{"STATE_PATH", "state.path"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PUSH_BASE_DELAY", "250ms")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Push.BaseDelay != 250*time.Millisecond {
		t.Errorf("Push.BaseDelay = %v, want 250ms", cfg.Push.BaseDelay)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.local" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Push.MaxAttempts != 3 {
		t.Errorf("Push.MaxAttempts = %d, want default 3", cfg.Push.MaxAttempts)
	}
}

func TestLoadWithKoanfFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talkalert.yaml")
	content := `
server:
  port: 7000
gateway:
  mode: websocket
  url: wss://gateway.example/ws
push:
  max_attempts: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PUSH_MAX_ATTEMPTS", "2")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 from file", cfg.Server.Port)
	}
	if cfg.Gateway.Mode != GatewayModeWebSocket || cfg.Gateway.URL != "wss://gateway.example/ws" {
		t.Errorf("gateway not loaded from file: %+v", cfg.Gateway)
	}
	if cfg.Push.MaxAttempts != 2 {
		t.Errorf("Push.MaxAttempts = %d, want env override 2", cfg.Push.MaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad mode", func(c *Config) { c.Gateway.Mode = "carrier-pigeon" }, "GATEWAY_MODE"},
		{"websocket without url", func(c *Config) { c.Gateway.Mode = GatewayModeWebSocket }, "GATEWAY_URL"},
		{"nats without subject", func(c *Config) {
			c.Gateway.Mode = GatewayModeNATS
			c.Gateway.NATSSubject = ""
		}, "NATS_SUBJECT"},
		{"too many attempts", func(c *Config) { c.Push.MaxAttempts = 11 }, "PUSH_MAX_ATTEMPTS"},
		{"max delay below base", func(c *Config) { c.Push.MaxDelay = time.Millisecond }, "push delays"},
		{"zero queue", func(c *Config) { c.Push.QueueDepth = 0 }, "PUSH_QUEUE_DEPTH"},
		{"history without path", func(c *Config) { c.History.Path = "" }, "HISTORY_PATH"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"empty state path", func(c *Config) { c.State.Path = " " }, "STATE_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
