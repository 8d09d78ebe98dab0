// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

// FrameTypeMessageCreate is the only frame type that carries an event.
const FrameTypeMessageCreate = "message_create"

var errMissingAuthor = errors.New("event has no author_user_id")

// frame is the gateway wire envelope:
//
//	{"type": "message_create", "data": {...InboundEvent...}}
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// decodeFrame parses a gateway frame. ok is false for frames that carry no
// event (heartbeats, ready, typing and so on).
func decodeFrame(data []byte) (e models.InboundEvent, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return e, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type != FrameTypeMessageCreate {
		return e, false, nil
	}
	e, err = decodeEvent(f.Data)
	if err != nil {
		return e, false, err
	}
	return e, true, nil
}

// decodeEvent parses a bare event payload.
func decodeEvent(data []byte) (models.InboundEvent, error) {
	var e models.InboundEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	e.AuthorUserID = strings.TrimSpace(e.AuthorUserID)
	if e.AuthorUserID == "" {
		return e, errMissingAuthor
	}
	return e, nil
}

// encodeEvent is the inverse of decodeEvent. A zero timestamp is set to now.
func encodeEvent(e models.InboundEvent) ([]byte, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

func countDecodeError() {
	metrics.GatewayDecodeErrors.Inc()
}
