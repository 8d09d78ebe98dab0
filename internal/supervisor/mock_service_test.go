// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errSimulated = errors.New("simulated failure")

// MockService implements suture.Service. Each Serve call takes the next
// scripted result; with the script exhausted it runs until cancelled.
type MockService struct {
	name   string
	starts atomic.Int32
	stops  atomic.Int32

	mu     sync.Mutex
	script []error
	always error
}

func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

func (m *MockService) Serve(ctx context.Context) error {
	m.starts.Add(1)
	defer m.stops.Add(1)

	m.mu.Lock()
	var err error
	if len(m.script) > 0 {
		err, m.script = m.script[0], m.script[1:]
	} else {
		err = m.always
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// SetError makes every Serve return err immediately.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.always = err
}

// SetFailCount makes the next n calls fail.
func (m *MockService) SetFailCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.script = append(m.script, errSimulated)
	}
}

func (m *MockService) StartCount() int32 { return m.starts.Load() }
func (m *MockService) StopCount() int32  { return m.stops.Load() }
func (m *MockService) String() string    { return m.name }
