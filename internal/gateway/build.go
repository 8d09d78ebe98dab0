// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package gateway

import (
	"context"
	"fmt"

	"github.com/tomtom215/talkalert/internal/config"
	"github.com/tomtom215/talkalert/internal/models"
)

// Publisher injects events into a running gateway.
type Publisher interface {
	Publish(e models.InboundEvent) error
}

// StateReporter exposes a source's connection state.
type StateReporter interface {
	State() models.ConnectionState
	OnStateChange(fn StateFunc)
}

// Gateway bundles the configured source with its state reporter and, when
// the transport supports it, an ingest publisher.
type Gateway struct {
	Source Source
	State  StateReporter
	Ingest Publisher

	closers []func(ctx context.Context) error
}

// Close releases publisher connections and any embedded server.
func (g *Gateway) Close(ctx context.Context) error {
	var first error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New builds the gateway selected by cfg.Mode. token is the effective bot
// token (cfg.Token overrides the persisted one).
func New(cfg *config.GatewayConfig, token string) (*Gateway, error) {
	if cfg.Token != "" {
		token = cfg.Token
	}

	switch cfg.Mode {
	case config.GatewayModeFeed:
		feed := NewFeed(cfg.FeedBuffer)
		return &Gateway{Source: feed, State: feed, Ingest: feed}, nil

	case config.GatewayModeWebSocket:
		src := NewWebSocketSource(WebSocketConfig{
			URL:              cfg.URL,
			Token:            token,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReconnectInitial: cfg.ReconnectInitial,
			ReconnectMax:     cfg.ReconnectMax,
			Buffer:           cfg.EventChannelDepth,
		})
		return &Gateway{Source: src, State: src}, nil

	case config.GatewayModeNATS:
		return newNATSGateway(cfg)

	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
	}
}

func newNATSGateway(cfg *config.GatewayConfig) (*Gateway, error) {
	g := &Gateway{}
	url := cfg.NATSURL

	if cfg.NATSEmbedded {
		ns, err := StartEmbeddedNATS(cfg.NATSEmbeddedHost, cfg.NATSEmbeddedPort)
		if err != nil {
			return nil, err
		}
		url = ns.ClientURL()
		g.closers = append(g.closers, ns.Shutdown)
	}

	src := NewNATSSource(NATSConfig{
		URL:           url,
		Subject:       cfg.NATSSubject,
		QueueGroup:    cfg.NATSQueueGroup,
		AckWait:       cfg.NATSAckWait,
		CloseTimeout:  cfg.NATSCloseTimeout,
		ReconnectWait: cfg.ReconnectInitial,
		Buffer:        cfg.EventChannelDepth,
	})
	g.Source = src
	g.State = src

	pub, err := NewNATSPublisher(url, cfg.NATSSubject)
	if err != nil {
		_ = g.Close(context.Background())
		return nil, err
	}
	g.Ingest = pub
	g.closers = append(g.closers, func(context.Context) error { return pub.Close() })

	return g, nil
}
