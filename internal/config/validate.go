// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validatePush(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if strings.TrimSpace(c.State.Path) == "" {
		return fmt.Errorf("STATE_PATH must not be empty")
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitRequests)
	}
	return nil
}

func (c *Config) validateGateway() error {
	switch c.Gateway.Mode {
	case GatewayModeFeed:
	case GatewayModeWebSocket:
		u, err := url.Parse(c.Gateway.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("GATEWAY_URL must be a ws:// or wss:// URL when GATEWAY_MODE=websocket, got %q", c.Gateway.URL)
		}
	case GatewayModeNATS:
		if c.Gateway.NATSURL == "" || c.Gateway.NATSSubject == "" {
			return fmt.Errorf("NATS_URL and NATS_SUBJECT are required when GATEWAY_MODE=nats")
		}
		if c.Gateway.NATSEmbedded && (c.Gateway.NATSEmbeddedPort < 0 || c.Gateway.NATSEmbeddedPort > 65535) {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 0 and 65535, got %d", c.Gateway.NATSEmbeddedPort)
		}
	default:
		return fmt.Errorf("GATEWAY_MODE must be one of websocket, nats, feed; got %q", c.Gateway.Mode)
	}
	if c.Gateway.EventChannelDepth < 1 {
		return fmt.Errorf("gateway.event_channel_depth must be at least 1")
	}
	return nil
}

func (c *Config) validatePush() error {
	if _, err := url.ParseRequestURI(c.Push.Endpoint); err != nil {
		return fmt.Errorf("PUSHOVER_ENDPOINT is not a valid URL: %w", err)
	}
	if c.Push.MaxAttempts < 1 || c.Push.MaxAttempts > 10 {
		return fmt.Errorf("PUSH_MAX_ATTEMPTS must be between 1 and 10, got %d", c.Push.MaxAttempts)
	}
	if c.Push.AttemptTimeout <= 0 {
		return fmt.Errorf("PUSH_ATTEMPT_TIMEOUT must be positive")
	}
	if c.Push.BaseDelay <= 0 || c.Push.MaxDelay < c.Push.BaseDelay {
		return fmt.Errorf("push delays invalid: base=%s max=%s", c.Push.BaseDelay, c.Push.MaxDelay)
	}
	if c.Push.QueueDepth < 1 {
		return fmt.Errorf("PUSH_QUEUE_DEPTH must be at least 1, got %d", c.Push.QueueDepth)
	}
	if c.Push.RatePerMinute < 0 {
		return fmt.Errorf("PUSH_RATE_PER_MINUTE must not be negative")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.SoundTimeout <= 0 || c.Engine.PushTimeout <= 0 || c.Engine.DrainTimeout <= 0 {
		return fmt.Errorf("engine timeouts must be positive")
	}
	if c.Engine.SubscriberBuffer < 1 {
		return fmt.Errorf("ENGINE_SUBSCRIBER_BUFFER must be at least 1")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if !c.History.Enabled {
		return nil
	}
	if !c.History.InMemory && c.History.Path == "" {
		return fmt.Errorf("HISTORY_PATH is required unless HISTORY_IN_MEMORY=true")
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("HISTORY_LIMIT must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
