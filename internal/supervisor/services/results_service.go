// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package services

import (
	"context"

	"github.com/tomtom215/talkalert/internal/models"
)

// SubscribeFunc opens a result stream. *dispatch.Engine.Subscribe
// satisfies it.
type SubscribeFunc func(buf int) (<-chan models.DispatchResult, func())

// ConsumeFunc reads results until ctx ends or the stream closes.
// (*websocket.Hub).Forward and (*history.Store).Record satisfy it.
type ConsumeFunc func(ctx context.Context, results <-chan models.DispatchResult) error

// ResultConsumerService feeds dispatch results to a consumer. Each Serve
// opens a fresh subscription and cancels it on return, so a restarted
// consumer never shares a stream with its previous run.
type ResultConsumerService struct {
	name      string
	subscribe SubscribeFunc
	consume   ConsumeFunc
	buffer    int
}

// NewResultConsumerService creates a consumer service. buffer is the
// subscription depth; results beyond it are dropped for this consumer.
func NewResultConsumerService(name string, subscribe SubscribeFunc, consume ConsumeFunc, buffer int) *ResultConsumerService {
	return &ResultConsumerService{
		name:      name,
		subscribe: subscribe,
		consume:   consume,
		buffer:    buffer,
	}
}

// Serve implements suture.Service.
func (s *ResultConsumerService) Serve(ctx context.Context) error {
	results, cancel := s.subscribe(s.buffer)
	defer cancel()

	return s.consume(ctx, results)
}

// String implements fmt.Stringer.
func (s *ResultConsumerService) String() string {
	return s.name
}
