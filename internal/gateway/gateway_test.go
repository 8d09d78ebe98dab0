// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/talkalert/internal/config"
	"github.com/tomtom215/talkalert/internal/models"
)

func recv(t *testing.T, ch <-chan models.InboundEvent) models.InboundEvent {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.InboundEvent{}
}

func waitClosed(t *testing.T, ch <-chan models.InboundEvent) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed")
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantOK  bool
		wantErr bool
	}{
		{"message", `{"type":"message_create","data":{"author_user_id":"42","content":"hi"}}`, true, false},
		{"padded author", `{"type":"message_create","data":{"author_user_id":"  42 "}}`, true, false},
		{"heartbeat", `{"type":"heartbeat"}`, false, false},
		{"no author", `{"type":"message_create","data":{"content":"hi"}}`, false, true},
		{"garbage", `not json`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, ok, err := decodeFrame([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && e.AuthorUserID != "42" {
				t.Errorf("AuthorUserID = %q, want 42", e.AuthorUserID)
			}
		})
	}
}

func TestFeedPublishAndClose(t *testing.T) {
	t.Parallel()

	feed := NewFeed(1)
	if err := feed.Publish(models.InboundEvent{AuthorUserID: "1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := feed.Publish(models.InboundEvent{AuthorUserID: "2"}); !errors.Is(err, ErrFeedFull) {
		t.Fatalf("Publish() on full feed error = %v, want ErrFeedFull", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := feed.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if feed.State() != models.StateOnline {
		t.Errorf("State() = %s, want online", feed.State())
	}
	if _, err := feed.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}

	e := recv(t, ch)
	if e.AuthorUserID != "1" || e.Timestamp.IsZero() {
		t.Errorf("event = %+v, want author 1 with timestamp", e)
	}

	cancel()
	waitClosed(t, ch)
	if feed.State() != models.StateOffline {
		t.Errorf("State() after cancel = %s, want offline", feed.State())
	}
	if err := feed.Publish(models.InboundEvent{AuthorUserID: "3"}); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("Publish() after close error = %v, want ErrFeedClosed", err)
	}
}

func TestStateTrackerHooks(t *testing.T) {
	t.Parallel()

	var tr StateTracker
	if tr.State() != models.StateOffline {
		t.Fatalf("zero State() = %s, want offline", tr.State())
	}

	var mu sync.Mutex
	var seen []models.ConnectionState
	tr.OnStateChange(func(s models.ConnectionState, _ error) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	tr.set(models.StateConnecting, nil)
	tr.set(models.StateConnecting, nil) // no-op
	tr.set(models.StateOnline, nil)
	tr.set(models.StateOffline, errors.New("boom"))

	mu.Lock()
	defer mu.Unlock()
	want := []models.ConnectionState{models.StateConnecting, models.StateOnline, models.StateOffline}
	if len(seen) != len(want) {
		t.Fatalf("hooks saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("hook[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestDisconnectedKind(t *testing.T) {
	t.Parallel()

	if Disconnected(nil) != nil {
		t.Error("Disconnected(nil) should be nil")
	}
	if k := models.KindOf(Disconnected(errors.New("eof"))); k != models.KindDisconnected {
		t.Errorf("KindOf = %s, want disconnected", k)
	}
}

// gatewayServer upgrades each connection, records its Authorization header
// and writes frames, then closes the first connection to force a reconnect.
type gatewayServer struct {
	mu       sync.Mutex
	auth     []string
	conns    int
	upgrader websocket.Upgrader
	frames   []string
}

func (g *gatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	g.mu.Lock()
	g.auth = append(g.auth, r.Header.Get("Authorization"))
	g.conns++
	n := g.conns
	g.mu.Unlock()

	for _, f := range g.frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}
	if n == 1 {
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWebSocketSourceReconnects(t *testing.T) {
	t.Parallel()

	gs := &gatewayServer{frames: []string{
		`{"type":"ready"}`,
		`{"type":"message_create","data":"bad"}`,
		`{"type":"message_create","data":{"author_user_id":"42","content":"hello"}}`,
	}}
	srv := httptest.NewServer(gs)
	defer srv.Close()

	src := NewWebSocketSource(WebSocketConfig{
		URL:              "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:            "secret",
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		Buffer:           4,
	})

	var mu sync.Mutex
	var states []models.ConnectionState
	src.OnStateChange(func(s models.ConnectionState, _ error) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// One event per connection; the second proves the reconnect.
	for i := 0; i < 2; i++ {
		e := recv(t, ch)
		if e.AuthorUserID != "42" || e.Content != "hello" {
			t.Fatalf("event %d = %+v", i, e)
		}
	}

	cancel()
	waitClosed(t, ch)

	gs.mu.Lock()
	for _, a := range gs.auth {
		if a != "Bot secret" {
			t.Errorf("Authorization = %q, want %q", a, "Bot secret")
		}
	}
	gs.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 || states[len(states)-1] != models.StateOffline {
		t.Errorf("final state transitions = %v, want trailing offline", states)
	}
	online := 0
	for _, s := range states {
		if s == models.StateOnline {
			online++
		}
	}
	if online < 2 {
		t.Errorf("online transitions = %d, want >= 2", online)
	}
}

func TestWebSocketSourceUnreachable(t *testing.T) {
	t.Parallel()

	src := NewWebSocketSource(WebSocketConfig{
		URL:              "ws://127.0.0.1:1/gateway",
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     20 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	ch, err := src.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() should not fail on an unreachable gateway: %v", err)
	}
	waitClosed(t, ch)
	if src.State() != models.StateOffline {
		t.Errorf("State() = %s, want offline", src.State())
	}
}

func TestNATSSourceRoundTrip(t *testing.T) {
	t.Parallel()

	ns, err := StartEmbeddedNATS("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbeddedNATS() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ns.Shutdown(ctx)
	}()
	if !ns.IsRunning() {
		t.Fatal("embedded server not running")
	}

	src := NewNATSSource(NATSConfig{
		URL:        ns.ClientURL(),
		Subject:    "talkalert.test",
		QueueGroup: "talkalert",
		Buffer:     4,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if src.State() != models.StateOnline {
		t.Errorf("State() = %s, want online", src.State())
	}

	pub, err := NewNATSPublisher(ns.ClientURL(), "talkalert.test")
	if err != nil {
		t.Fatalf("NewNATSPublisher() error = %v", err)
	}
	defer pub.Close()

	// Core NATS drops messages published before the subscription is
	// registered, so publish until one arrives.
	want := models.InboundEvent{AuthorUserID: "42", Content: "over nats"}
	got := make(chan models.InboundEvent, 1)
	go func() {
		select {
		case e := <-ch:
			got <- e
		case <-time.After(5 * time.Second):
		}
	}()

	deadline := time.After(5 * time.Second)
	var e models.InboundEvent
loop:
	for {
		if err := pub.Publish(want); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		select {
		case e = <-got:
			break loop
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for NATS event")
		}
	}

	if e.AuthorUserID != want.AuthorUserID || e.Content != want.Content || e.Timestamp.IsZero() {
		t.Errorf("event = %+v, want %+v with timestamp", e, want)
	}

	cancel()
	waitClosed(t, ch)
}

func TestNATSSourceConnectRetryAfterFailure(t *testing.T) {
	t.Parallel()

	ns, err := StartEmbeddedNATS("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbeddedNATS() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ns.Shutdown(ctx)
	}()

	// An empty subject is rejected by the subscribe call.
	src := NewNATSSource(NATSConfig{URL: ns.ClientURL(), Buffer: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := src.Connect(ctx); err == nil {
		t.Fatal("Connect() with empty subject succeeded, want error")
	}
	if src.State() != models.StateOffline {
		t.Errorf("State() after failed Connect = %s, want offline", src.State())
	}

	src.cfg.Subject = "talkalert.retry"
	ch, err := src.Connect(ctx)
	if errors.Is(err, ErrAlreadyConnected) {
		t.Fatal("Connect() after a failed attempt returned ErrAlreadyConnected")
	}
	if err != nil {
		t.Fatalf("Connect() retry error = %v", err)
	}
	if src.State() != models.StateOnline {
		t.Errorf("State() = %s, want online", src.State())
	}

	if _, err := src.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("third Connect() error = %v, want ErrAlreadyConnected", err)
	}

	cancel()
	waitClosed(t, ch)
}

func TestNewSelectsMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        config.GatewayConfig
		wantIngest bool
		wantErr    bool
	}{
		{"feed", config.GatewayConfig{Mode: config.GatewayModeFeed, FeedBuffer: 4}, true, false},
		{"websocket", config.GatewayConfig{Mode: config.GatewayModeWebSocket, URL: "ws://127.0.0.1:1"}, false, false},
		{"embedded nats", config.GatewayConfig{
			Mode:             config.GatewayModeNATS,
			NATSSubject:      "talkalert.events",
			NATSEmbedded:     true,
			NATSEmbeddedHost: "127.0.0.1",
			NATSEmbeddedPort: -1,
		}, true, false},
		{"unknown", config.GatewayConfig{Mode: "carrier-pigeon"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := New(&tt.cfg, "token")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer g.Close(context.Background())

			if (g.Ingest != nil) != tt.wantIngest {
				t.Errorf("Ingest present = %v, want %v", g.Ingest != nil, tt.wantIngest)
			}
			if g.State.State() != models.StateOffline {
				t.Errorf("State() before Connect = %s, want offline", g.State.State())
			}
		})
	}
}
