// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package metrics declares the Prometheus instrumentation for TalkAlert.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch Metrics
	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_events_received_total",
			Help: "Total number of inbound chat events seen by the dispatch engine",
		},
	)

	EventsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkalert_events_ignored_total",
			Help: "Events that did not trigger any sink",
		},
		[]string{"reason"}, // "muted", "no_match", "bot"
	)

	RuleMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_rule_matches_total",
			Help: "Total number of events that matched a rule",
		},
	)

	SinkOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkalert_sink_outcomes_total",
			Help: "Sink invocation results",
		},
		[]string{"sink", "status", "kind"},
	)

	SinkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talkalert_sink_duration_seconds",
			Help:    "Time from sink invocation to result",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"sink"},
	)

	SinksInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "talkalert_sinks_in_flight",
			Help: "Sink calls currently running",
		},
		[]string{"sink"},
	)

	EngineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talkalert_engine_state",
			Help: "Dispatch engine state (0=idle, 1=running, 2=stopped)",
		},
	)

	Muted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talkalert_muted",
			Help: "1 when alerts are muted",
		},
	)

	RulesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talkalert_rules_active",
			Help: "Number of rules in the live rule table",
		},
	)

	// Sound Metrics
	SoundInterruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_sound_interruptions_total",
			Help: "Playbacks cut short by a newer alert or by muting",
		},
	)

	// Push Metrics
	PushAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkalert_push_attempts_total",
			Help: "HTTP attempts made against the push provider",
		},
		[]string{"result"}, // "ok", "retry", "rejected", "error"
	)

	PushRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_push_retries_total",
			Help: "Push attempts that were retried after a transient failure",
		},
	)

	PushDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkalert_push_dropped_total",
			Help: "Push notifications dropped before sending",
		},
		[]string{"reason"}, // "queue_full", "rate_limited"
	)

	// Gateway Metrics
	GatewayState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talkalert_gateway_state",
			Help: "Gateway connection state (0=offline, 1=connecting, 2=online)",
		},
	)

	GatewayReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_gateway_reconnects_total",
			Help: "Gateway reconnect attempts",
		},
	)

	GatewayDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_gateway_decode_errors_total",
			Help: "Inbound frames that could not be decoded",
		},
	)

	// History Metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkalert_history_writes_total",
			Help: "Dispatch results written to the history store",
		},
		[]string{"result"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkalert_api_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talkalert_api_request_duration_seconds",
			Help:    "Duration of control API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talkalert_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "talkalert_websocket_messages_dropped_total",
			Help: "Broadcasts dropped because the hub or a client was backed up",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordSinkOutcome records the result of one sink call.
func RecordSinkOutcome(sink, status, kind string, duration time.Duration) {
	if kind == "" {
		kind = "none"
	}
	SinkOutcomes.WithLabelValues(sink, status, kind).Inc()
	if duration > 0 {
		SinkDuration.WithLabelValues(sink).Observe(duration.Seconds())
	}
}

// RecordAPIRequest records a control API request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetMuted mirrors the mute switch.
func SetMuted(muted bool) {
	if muted {
		Muted.Set(1)
		return
	}
	Muted.Set(0)
}
