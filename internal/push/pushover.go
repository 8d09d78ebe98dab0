// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package push delivers alert notifications through the Pushover API.
//
// Each Send validates credentials, then makes up to RetryPolicy.MaxAttempts
// form POSTs, each bounded by its own timeout. Transient failures (timeouts,
// connection errors, 5xx, a first 429) are retried with doubling backoff;
// any other 4xx is final. A circuit breaker stops hammering the provider
// while it is down.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

// DefaultEndpoint is the Pushover messages API.
const DefaultEndpoint = "https://api.pushover.net/1/messages.json"

const (
	breakerName     = "pushover"
	maxResponseBody = 64 << 10
)

// HTTPDoer is the subset of *http.Client used by the sink.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Sink.
type Config struct {
	Endpoint         string
	AttemptTimeout   time.Duration
	Retry            RetryPolicy
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:         DefaultEndpoint,
		AttemptTimeout:   10 * time.Second,
		Retry:            DefaultRetryPolicy(),
		BreakerFailures:  5,
		BreakerOpenDelay: time.Minute,
	}
}

// Delivery describes how a Send went.
type Delivery struct {
	Attempts  int
	Delays    []time.Duration
	RequestID string
}

// Retries is the number of attempts after the first.
func (d Delivery) Retries() int {
	if d.Attempts == 0 {
		return 0
	}
	return d.Attempts - 1
}

// attemptError classifies one failed attempt.
type attemptError struct {
	kind        models.ErrorKind
	status      int
	retryable   bool
	rateLimited bool
	err         error
}

func (e *attemptError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("pushover HTTP %d: %v", e.status, e.err)
	}
	return e.err.Error()
}

func (e *attemptError) Unwrap() error { return e.err }

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

// Sink sends notifications to Pushover.
type Sink struct {
	cfg     Config
	client  HTTPDoer
	clock   Clock
	breaker *gobreaker.CircuitBreaker[string]
	logger  zerolog.Logger
}

// NewSink creates a sink. A nil client gets an *http.Client without a
// global timeout (attempts carry their own deadline); a nil clock uses
// wall time.
func NewSink(cfg Config, client HTTPDoer, clock Clock) *Sink {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenDelay <= 0 {
		cfg.BreakerOpenDelay = time.Minute
	}
	if client == nil {
		client = &http.Client{}
	}
	if clock == nil {
		clock = RealClock
	}

	s := &Sink{
		cfg:    cfg,
		client: client,
		clock:  clock,
		logger: logging.WithComponent("push"),
	}
	s.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerOpenDelay, s.logger)
	return s
}

// Send delivers n. It returns a *models.SinkError of kind
// InvalidCredentials (no request made), Rejected, DeliveryFailed or
// Timeout (ctx ended) on failure.
func (s *Sink) Send(ctx context.Context, n models.Notification, creds models.PushCredentials) (Delivery, error) {
	var d Delivery
	if !creds.Valid() {
		return d, models.NewSinkError(models.KindInvalidCredentials, "push.send",
			errors.New("pushover api token and user key are required"))
	}

	form := buildForm(n, creds)
	rateLimited := 0

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return d, models.NewSinkError(models.KindTimeout, "push.send", err)
		}

		d.Attempts = attempt
		reqID, err := s.attempt(ctx, form)
		if err == nil {
			d.RequestID = reqID
			metrics.PushAttempts.WithLabelValues("ok").Inc()
			return d, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.PushAttempts.WithLabelValues("error").Inc()
			return d, models.NewSinkError(models.KindTimeout, "push.send", err)
		}

		var ae *attemptError
		if errors.As(err, &ae) && ae.rateLimited {
			rateLimited++
		}

		wait, retry := s.cfg.Retry.Decide(attempt, err, rateLimited)
		if !retry {
			final := finalError(err)
			if models.KindOf(final) == models.KindRejected {
				metrics.PushAttempts.WithLabelValues("rejected").Inc()
			} else {
				metrics.PushAttempts.WithLabelValues("error").Inc()
			}
			return d, final
		}

		metrics.PushAttempts.WithLabelValues("retry").Inc()
		metrics.PushRetries.Inc()
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Pushover attempt failed, retrying")

		d.Delays = append(d.Delays, wait)
		select {
		case <-s.clock.After(wait):
		case <-ctx.Done():
			return d, models.NewSinkError(models.KindTimeout, "push.send", ctx.Err())
		}
	}
}

// finalError maps the last attempt error to the reported kind: a transient
// error that ran out of attempts becomes DeliveryFailed.
func finalError(err error) error {
	var ae *attemptError
	if errors.As(err, &ae) {
		if ae.retryable || ae.kind == "" {
			return models.NewSinkError(models.KindDeliveryFailed, "push.send", err)
		}
		return models.NewSinkError(ae.kind, "push.send", err)
	}
	return models.NewSinkError(models.KindDeliveryFailed, "push.send", err)
}

// attempt runs one POST through the circuit breaker.
func (s *Sink) attempt(ctx context.Context, form url.Values) (string, error) {
	reqID, err := s.breaker.Execute(func() (string, error) {
		return s.post(ctx, form)
	})
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		return reqID, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return "", &attemptError{kind: models.KindDeliveryFailed, err: err}
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	return "", err
}

func (s *Sink) post(ctx context.Context, form url.Values) (string, error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, s.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &attemptError{kind: models.KindRejected, err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		if actx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return "", &attemptError{kind: models.KindTimeout, retryable: true, err: err}
		}
		return "", &attemptError{kind: models.KindDeliveryFailed, retryable: true, err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	var parsed pushoverResponse
	jsonOK := readErr == nil && json.Unmarshal(body, &parsed) == nil

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !jsonOK || parsed.Status == 1 {
			return parsed.Request, nil
		}
		return "", &attemptError{
			kind:   models.KindRejected,
			status: resp.StatusCode,
			err:    fmt.Errorf("status %d: %s", parsed.Status, describe(parsed)),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &attemptError{
			kind:        models.KindRejected,
			status:      resp.StatusCode,
			rateLimited: true,
			err:         errors.New("rate limited"),
		}
	case resp.StatusCode >= 500:
		return "", &attemptError{
			kind:      models.KindDeliveryFailed,
			status:    resp.StatusCode,
			retryable: true,
			err:       errors.New(http.StatusText(resp.StatusCode)),
		}
	default:
		return "", &attemptError{
			kind:   models.KindRejected,
			status: resp.StatusCode,
			err:    errors.New(describe(parsed)),
		}
	}
}

func describe(r pushoverResponse) string {
	if len(r.Errors) == 0 {
		return "request rejected"
	}
	return strings.Join(r.Errors, "; ")
}

func buildForm(n models.Notification, creds models.PushCredentials) url.Values {
	data := url.Values{}
	data.Set("token", creds.APIToken)
	data.Set("user", creds.UserKey)
	data.Set("title", n.Title)
	data.Set("message", n.Message)
	if n.URL != "" {
		data.Set("url", n.URL)
		if n.URLTitle != "" {
			data.Set("url_title", n.URLTitle)
		}
	}
	if n.Sound != "" {
		data.Set("sound", n.Sound)
	}
	return data
}
