// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package sound plays alert sounds on the local audio device.
//
// Overlap policy: interrupt-and-replace. The sink owns a single playback
// slot. A Play call that arrives while another clip is sounding stops that
// clip (its Play returns ErrInterrupted) and starts the new one immediately.
// Requests are never queued.
package sound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

// ErrInterrupted is returned by Play when a newer alert, Stop, or Close cut
// the playback short.
var ErrInterrupted = errors.New("playback interrupted")

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("sound sink closed")

// Decoder opens an audio file for playback.
type Decoder interface {
	Decode(path string) (*Clip, error)
}

// Device renders clips. Play must not block; it calls done from any
// goroutine once the clip has been fully rendered. After Stop the device
// must not call done for the stopped clip or read from it again.
type Device interface {
	Play(clip *Clip, volume int, done func()) error
	Stop()
	Close() error
}

type playback struct {
	clip        *Clip
	path        string
	done        chan struct{}
	once        sync.Once
	interrupted bool
}

// finish is idempotent; only the first caller decides whether the playback
// was interrupted.
func (p *playback) finish(interrupted bool) {
	p.once.Do(func() {
		p.interrupted = interrupted
		close(p.done)
	})
}

// Sink serializes playback onto one device.
type Sink struct {
	decoder Decoder
	device  Device
	logger  zerolog.Logger

	mu      sync.Mutex
	current *playback
	closed  bool
}

// NewSink creates a sink that owns device.
func NewSink(decoder Decoder, device Device) *Sink {
	return &Sink{
		decoder: decoder,
		device:  device,
		logger:  logging.WithComponent("sound"),
	}
}

// Play decodes path and plays it at volume (0-100, clamped). It returns nil
// once the clip has played to the end, ErrInterrupted if it was replaced or
// stopped, or a *models.SinkError classified as NotFound, DecodeFailure or
// DeviceError. If ctx ends first the playback is stopped and the context
// error is returned.
func (s *Sink) Play(ctx context.Context, path string, volume int) error {
	if !models.IsSupportedSound(path) {
		return models.NewSinkError(models.KindDecodeFailure, "sound.play",
			fmt.Errorf("unsupported audio format %q (want .wav or .mp3)", path))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	clip, err := s.decoder.Decode(path)
	if err != nil {
		return err
	}

	pb, err := s.start(clip, path, models.ClampVolume(volume))
	if err != nil {
		clip.Close()
		return err
	}

	select {
	case <-pb.done:
	case <-ctx.Done():
		s.stopPlayback(pb)
	}

	s.release(pb)
	clip.Close()

	if pb.interrupted {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("playback of %s: %w", path, ctxErr)
		}
		return ErrInterrupted
	}
	return nil
}

func (s *Sink) start(clip *Clip, path string, volume int) (*playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, models.NewSinkError(models.KindDeviceError, "sound.play", ErrClosed)
	}

	if prev := s.current; prev != nil {
		s.device.Stop()
		prev.finish(true)
		metrics.SoundInterruptions.Inc()
		s.logger.Debug().
			Str("interrupted", prev.path).
			Str("replacement", path).
			Msg("Replacing active playback")
	}

	pb := &playback{clip: clip, path: path, done: make(chan struct{})}
	if err := s.device.Play(clip, volume, func() { pb.finish(false) }); err != nil {
		s.current = nil
		var se *models.SinkError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, models.NewSinkError(models.KindDeviceError, "sound.play", err)
	}
	s.current = pb
	return pb, nil
}

// stopPlayback stops pb if it is still the active playback.
func (s *Sink) stopPlayback(pb *playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == pb {
		s.device.Stop()
		s.current = nil
	}
	pb.finish(true)
}

func (s *Sink) release(pb *playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == pb {
		s.current = nil
	}
}

// Playing reports whether a clip is currently sounding.
func (s *Sink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Stop silences the active playback, if any.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.device.Stop()
	s.current.finish(true)
	s.current = nil
	metrics.SoundInterruptions.Inc()
}

// Close stops playback and releases the device. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.current != nil {
		s.device.Stop()
		s.current.finish(true)
		s.current = nil
	}
	start := time.Now()
	err := s.device.Close()
	s.logger.Debug().Dur("took", time.Since(start)).Msg("Audio device closed")
	return err
}
