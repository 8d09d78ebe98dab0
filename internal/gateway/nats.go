// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/models"
)

// NATSConfig configures a NATSSource. Events arrive as bare InboundEvent
// JSON payloads on Subject, published by a chat bridge process.
type NATSConfig struct {
	URL           string
	Subject       string
	QueueGroup    string
	AckWait       time.Duration
	CloseTimeout  time.Duration
	ReconnectWait time.Duration
	Buffer        int
}

// NATSSource consumes events from core NATS (no JetStream) through a
// Watermill subscriber. Missed events while offline are not replayed.
type NATSSource struct {
	StateTracker

	cfg       NATSConfig
	logger    watermill.LoggerAdapter
	connected atomic.Bool
}

// NewNATSSource creates a source for cfg.
func NewNATSSource(cfg NATSConfig) *NATSSource {
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	return &NATSSource{
		cfg:    cfg,
		logger: newWatermillLogger(),
	}
}

func newWatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "gateway"))
}

func (s *NATSSource) natsOptions() []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(s.cfg.ReconnectWait),
		natsgo.ConnectHandler(func(nc *natsgo.Conn) {
			s.set(models.StateOnline, nil)
		}),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				s.logger.Error("NATS disconnected", err, nil)
			}
			s.set(models.StateConnecting, Disconnected(err))
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			s.logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
			s.set(models.StateOnline, nil)
		}),
	}
}

// Connect implements Source. Only a successful Connect uses up the source;
// after a failure Connect may be called again.
func (s *NATSSource) Connect(ctx context.Context) (<-chan models.InboundEvent, error) {
	if !s.connected.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConnected
	}
	s.set(models.StateConnecting, nil)

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              s.cfg.URL,
		QueueGroupPrefix: s.cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   s.cfg.AckWait,
		CloseTimeout:     s.cfg.CloseTimeout,
		NatsOptions:      s.natsOptions(),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, s.logger)
	if err != nil {
		s.connected.Store(false)
		s.set(models.StateOffline, Disconnected(err))
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	messages, err := sub.Subscribe(ctx, s.cfg.Subject)
	if err != nil {
		_ = sub.Close()
		s.connected.Store(false)
		s.set(models.StateOffline, Disconnected(err))
		return nil, fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	s.set(models.StateOnline, nil)

	out := make(chan models.InboundEvent, s.cfg.Buffer)
	go s.forward(ctx, sub, messages, out)
	return out, nil
}

func (s *NATSSource) forward(ctx context.Context, sub message.Subscriber, messages <-chan *message.Message, out chan<- models.InboundEvent) {
	defer close(out)
	defer s.set(models.StateOffline, nil)
	defer func() {
		if err := sub.Close(); err != nil {
			s.logger.Error("Closing NATS subscriber", err, nil)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			e, err := decodeEvent(msg.Payload)
			// Malformed payloads are acked; redelivery cannot fix them.
			msg.Ack()
			if err != nil {
				countDecodeError()
				s.logger.Error("Discarding malformed event", err, watermill.LogFields{
					"message_uuid": msg.UUID,
				})
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}

// NATSPublisher publishes events onto a subject in the format NATSSource
// consumes. It backs the HTTP ingest endpoint when the gateway runs in
// NATS mode and lets bridges reuse the same encoding.
type NATSPublisher struct {
	publisher message.Publisher
	subject   string
}

// NewNATSPublisher connects a core NATS publisher.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	logger := newWatermillLogger()
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: url,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return &NATSPublisher{publisher: pub, subject: subject}, nil
}

// Publish encodes and sends e.
func (p *NATSPublisher) Publish(e models.InboundEvent) error {
	data, err := encodeEvent(e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("author_user_id", e.AuthorUserID)
	return p.publisher.Publish(p.subject, msg)
}

// Close closes the underlying connection.
func (p *NATSPublisher) Close() error {
	return p.publisher.Close()
}
