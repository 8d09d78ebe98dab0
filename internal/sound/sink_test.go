// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package sound

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/talkalert/internal/models"
)

type fakeDecoder struct {
	err error
}

func (d fakeDecoder) Decode(path string) (*Clip, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &Clip{Path: path}, nil
}

type playCall struct {
	path   string
	volume int
	done   func()
}

// fakeDevice never finishes a clip on its own; tests call finish() to
// simulate the end of playback.
type fakeDevice struct {
	mu      sync.Mutex
	plays   []playCall
	stops   int
	closed  bool
	playErr error
	started chan string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{started: make(chan string, 16)}
}

func (d *fakeDevice) Play(clip *Clip, volume int, done func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playErr != nil {
		return d.playErr
	}
	d.plays = append(d.plays, playCall{path: clip.Path, volume: volume, done: done})
	d.started <- clip.Path
	return nil
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) finishLast() {
	d.mu.Lock()
	last := d.plays[len(d.plays)-1]
	d.mu.Unlock()
	last.done()
}

func (d *fakeDevice) snapshot() ([]playCall, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]playCall, len(d.plays))
	copy(out, d.plays)
	return out, d.stops
}

func waitStarted(t *testing.T, d *fakeDevice, want string) {
	t.Helper()
	select {
	case got := <-d.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("playback of %q never started", want)
	}
}

func TestPlayToCompletion(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	sink := NewSink(fakeDecoder{}, dev)

	errCh := make(chan error, 1)
	go func() { errCh <- sink.Play(context.Background(), "ding.wav", 80) }()

	waitStarted(t, dev, "ding.wav")
	if !sink.Playing() {
		t.Error("expected sink to report active playback")
	}
	dev.finishLast()

	if err := <-errCh; err != nil {
		t.Fatalf("Play: %v", err)
	}
	plays, _ := dev.snapshot()
	if len(plays) != 1 || plays[0].volume != 80 {
		t.Errorf("unexpected plays: %+v", plays)
	}
	if sink.Playing() {
		t.Error("playback slot should be free")
	}
}

// TestOverlapInterruptsAndReplaces covers two alerts arriving 10ms apart
// while the first is still sounding.
func TestOverlapInterruptsAndReplaces(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	sink := NewSink(fakeDecoder{}, dev)

	first := make(chan error, 1)
	go func() { first <- sink.Play(context.Background(), "ding.wav", 80) }()
	waitStarted(t, dev, "ding.wav")

	time.Sleep(10 * time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- sink.Play(context.Background(), "ding.wav", 80) }()
	waitStarted(t, dev, "ding.wav")

	select {
	case err := <-first:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("first Play = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first playback was not interrupted")
	}

	plays, stops := dev.snapshot()
	if len(plays) != 2 {
		t.Errorf("expected 2 device plays, got %d", len(plays))
	}
	if stops != 1 {
		t.Errorf("expected 1 device stop, got %d", stops)
	}

	dev.finishLast()
	if err := <-second; err != nil {
		t.Errorf("second Play = %v, want nil", err)
	}
}

func TestStopInterrupts(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	sink := NewSink(fakeDecoder{}, dev)

	errCh := make(chan error, 1)
	go func() { errCh <- sink.Play(context.Background(), "a.mp3", 50) }()
	waitStarted(t, dev, "a.mp3")

	sink.Stop()
	if err := <-errCh; !errors.Is(err, ErrInterrupted) {
		t.Errorf("Play = %v, want ErrInterrupted", err)
	}
	sink.Stop() // no active playback; must be a no-op
}

func TestPlayContextTimeout(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	sink := NewSink(fakeDecoder{}, dev)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sink.Play(ctx, "long.wav", 100)
	if models.KindOf(err) != models.KindTimeout {
		t.Errorf("Play = %v (kind %q), want timeout", err, models.KindOf(err))
	}
	if _, stops := dev.snapshot(); stops != 1 {
		t.Errorf("expected playback to be stopped on timeout, stops=%d", stops)
	}
}

func TestPlayErrors(t *testing.T) {
	t.Parallel()

	notFound := models.NewSinkError(models.KindNotFound, "sound.decode", os.ErrNotExist)

	tests := []struct {
		name    string
		decoder Decoder
		devErr  error
		path    string
		want    models.ErrorKind
	}{
		{"unsupported extension", fakeDecoder{}, nil, "alert.ogg", models.KindDecodeFailure},
		{"missing file", fakeDecoder{err: notFound}, nil, "gone.wav", models.KindNotFound},
		{"device failure", fakeDecoder{}, errors.New("no output device"), "ding.wav", models.KindDeviceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dev := newFakeDevice()
			dev.playErr = tt.devErr
			sink := NewSink(tt.decoder, dev)

			err := sink.Play(context.Background(), tt.path, 100)
			if got := models.KindOf(err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", err, got, tt.want)
			}
			if sink.Playing() {
				t.Error("failed play must not hold the slot")
			}
		})
	}
}

func TestCloseReleasesDevice(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	sink := NewSink(fakeDecoder{}, dev)

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !dev.closed {
		t.Error("device not closed")
	}
	if err := sink.Play(context.Background(), "ding.wav", 10); models.KindOf(err) != models.KindDeviceError {
		t.Errorf("Play after Close = %v, want device error", err)
	}
}

func TestFileDecoder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(garbage, []byte("definitely not RIFF"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := FileDecoder{}.Decode(filepath.Join(dir, "missing.wav"))
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("missing file: kind %q, want not_found", models.KindOf(err))
	}

	_, err = FileDecoder{}.Decode(garbage)
	if models.KindOf(err) != models.KindDecodeFailure {
		t.Errorf("corrupt file: kind %q, want decode_failure", models.KindOf(err))
	}
}

func TestGainFor(t *testing.T) {
	t.Parallel()

	for vol, want := range map[int]float64{0: -1, 50: -0.5, 100: 0, 150: 0} {
		if got := gainFor(vol); got != want {
			t.Errorf("gainFor(%d) = %v, want %v", vol, got, want)
		}
	}
}
