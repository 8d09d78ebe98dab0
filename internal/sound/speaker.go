// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package sound

import (
	"errors"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/tomtom215/talkalert/internal/models"
)

// resampleQuality trades CPU for fidelity when a clip's sample rate differs
// from the device rate.
const resampleQuality = 4

// SpeakerDevice renders clips on the default output device through the
// beep speaker. The beep speaker is process-global, so create at most one.
type SpeakerDevice struct {
	sampleRate beep.SampleRate
	buffer     time.Duration

	initOnce sync.Once
	initErr  error
	opened   bool

	mu     sync.Mutex
	closed bool
}

// NewSpeakerDevice configures the device. The speaker is opened lazily on
// the first Play so a machine without audio output can still run the
// rest of the application.
func NewSpeakerDevice(sampleRate int, buffer time.Duration) *SpeakerDevice {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &SpeakerDevice{sampleRate: beep.SampleRate(sampleRate), buffer: buffer}
}

func (d *SpeakerDevice) init() error {
	d.initOnce.Do(func() {
		d.initErr = speaker.Init(d.sampleRate, d.sampleRate.N(d.buffer))
		d.opened = d.initErr == nil
	})
	return d.initErr
}

// Play implements Device.
func (d *SpeakerDevice) Play(clip *Clip, volume int, done func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return models.NewSinkError(models.KindDeviceError, "speaker.play", errors.New("device closed"))
	}
	if err := d.init(); err != nil {
		return models.NewSinkError(models.KindDeviceError, "speaker.init", err)
	}
	if clip == nil || clip.Streamer == nil {
		return models.NewSinkError(models.KindDecodeFailure, "speaker.play", errors.New("empty clip"))
	}

	if err := clip.Streamer.Seek(0); err != nil {
		return models.NewSinkError(models.KindDecodeFailure, "speaker.seek", err)
	}

	var s beep.Streamer = clip.Streamer
	if clip.Format.SampleRate != d.sampleRate {
		s = beep.Resample(resampleQuality, clip.Format.SampleRate, d.sampleRate, s)
	}
	s = &effects.Gain{Streamer: s, Gain: gainFor(volume)}

	// done runs on the speaker goroutine with the speaker lock held; it
	// must not call back into the speaker package.
	speaker.Play(beep.Seq(s, beep.Callback(done)))
	return nil
}

// Stop implements Device.
func (d *SpeakerDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.opened {
		return
	}
	speaker.Clear()
}

// Close implements Device. It is a no-op if the speaker was never opened.
func (d *SpeakerDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.opened {
		speaker.Clear()
		speaker.Close()
	}
	return nil
}

// gainFor maps a 0-100 volume percentage to the beep Gain parameter, where
// output = input * (1 + Gain).
func gainFor(volume int) float64 {
	return float64(models.ClampVolume(volume))/100 - 1
}
