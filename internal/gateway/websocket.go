// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

const (
	maxFrameSize    = 1 << 20
	defaultReadWait = 60 * time.Second
)

// WebSocketConfig configures a WebSocketSource.
type WebSocketConfig struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	// ReadTimeout bounds the silence between frames or pongs before the
	// connection is considered dead.
	ReadTimeout time.Duration
	Buffer      int
}

// WebSocketSource reads gateway frames from a WebSocket and reconnects
// with exponential backoff until its context ends.
type WebSocketSource struct {
	StateTracker

	cfg       WebSocketConfig
	dialer    websocket.Dialer
	connected atomic.Bool
}

// NewWebSocketSource creates a source for cfg. Zero durations get defaults.
func NewWebSocketSource(cfg WebSocketConfig) *WebSocketSource {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = 32 * cfg.ReconnectInitial
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadWait
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	return &WebSocketSource{
		cfg: cfg,
		dialer: websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
	}
}

// Connect implements Source. The first dial happens in the background so a
// gateway outage at startup surfaces as connection state, not an error.
func (s *WebSocketSource) Connect(ctx context.Context) (<-chan models.InboundEvent, error) {
	if !s.connected.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConnected
	}
	out := make(chan models.InboundEvent, s.cfg.Buffer)
	go s.run(ctx, out)
	return out, nil
}

func (s *WebSocketSource) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ReconnectInitial
	b.MaxInterval = s.cfg.ReconnectMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (s *WebSocketSource) run(ctx context.Context, out chan<- models.InboundEvent) {
	defer close(out)
	defer s.set(models.StateOffline, nil)

	logger := logging.WithComponent("gateway").With().Str("transport", "websocket").Logger()
	b := s.newBackOff()

	for {
		s.set(models.StateConnecting, nil)
		conn, err := s.dial(ctx)
		if err == nil {
			b.Reset()
			s.set(models.StateOnline, nil)
			logger.Info().Msg("Gateway connected")
			err = s.readLoop(ctx, conn, out)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			logger.Info().Msg("Gateway listener stopping (context canceled)")
			return
		}

		wait := b.NextBackOff()
		s.set(models.StateOffline, Disconnected(err))
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("Gateway connection lost, reconnecting")

		select {
		case <-time.After(wait):
			metrics.GatewayReconnects.Inc()
		case <-ctx.Done():
			return
		}
	}
}

func (s *WebSocketSource) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.cfg.Token != "" {
		header.Set("Authorization", "Bot "+s.cfg.Token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// readLoop forwards events until the connection fails or ctx ends. A
// keepalive goroutine pings at half the read timeout; pongs extend the
// read deadline.
func (s *WebSocketSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- models.InboundEvent) error {
	conn.SetReadLimit(maxFrameSize)
	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	if err := extend(); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error { return extend() })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.cfg.ReadTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblock ReadMessage.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := extend(); err != nil {
			return err
		}

		e, ok, err := decodeFrame(data)
		if err != nil {
			countDecodeError()
			logging.Warn().Err(err).Msg("Discarding malformed gateway frame")
			continue
		}
		if !ok {
			continue
		}

		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
