// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package sound

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/tomtom215/talkalert/internal/models"
)

// Clip is a decoded, seekable audio stream.
type Clip struct {
	Path     string
	Streamer beep.StreamSeekCloser
	Format   beep.Format
}

// Close releases the underlying file. Nil-safe.
func (c *Clip) Close() {
	if c == nil || c.Streamer == nil {
		return
	}
	_ = c.Streamer.Close()
}

// FileDecoder decodes .wav and .mp3 files from disk.
type FileDecoder struct{}

// Decode implements Decoder.
func (FileDecoder) Decode(path string) (*Clip, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user's own rule
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NewSinkError(models.KindNotFound, "sound.decode", err)
		}
		return nil, models.NewSinkError(models.KindDecodeFailure, "sound.decode", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		err = fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		return nil, models.NewSinkError(models.KindDecodeFailure, "sound.decode", err)
	}

	return &Clip{Path: path, Streamer: streamer, Format: format}, nil
}
