// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package models

import (
	"strings"
	"time"
)

// InboundEvent is one message observed on the chat gateway. Events are
// immutable once produced and never persisted.
type InboundEvent struct {
	AuthorUserID string    `json:"author_user_id" validate:"required,max=64"`
	AuthorName   string    `json:"author_name,omitempty" validate:"max=100"`
	AuthorIsBot  bool      `json:"author_is_bot,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty" validate:"max=64"`
	ChannelName  string    `json:"channel_name,omitempty" validate:"max=100"`
	GuildName    string    `json:"guild_name,omitempty" validate:"max=100"`
	Content      string    `json:"content,omitempty" validate:"max=4000"`
	JumpURL      string    `json:"jump_url,omitempty" validate:"omitempty,url"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsDirectMessage reports whether the event has no guild.
func (e *InboundEvent) IsDirectMessage() bool {
	return e.GuildName == ""
}

// Where describes the event location: "DM" or "guild / #channel".
func (e *InboundEvent) Where() string {
	if e.IsDirectMessage() {
		return "DM"
	}
	channel := e.ChannelName
	if channel == "" {
		channel = e.ChannelID
	}
	return e.GuildName + " / #" + channel
}

// Who returns the author display name, or "User" when it is unknown.
func (e *InboundEvent) Who() string {
	if e.AuthorName != "" {
		return e.AuthorName
	}
	return unknownAuthor
}

// Notification is the message handed to the push sink.
type Notification struct {
	Title    string
	Message  string
	URL      string
	URLTitle string
	Sound    string
}

// Push notification constants.
const (
	NotificationTitle    = "TalkAlert"
	NotificationURLTitle = "Open in Discord"
	emptyContentText     = "(no text)"
	unknownAuthor        = "User"
)

// NewNotification builds the push notification for a matched event.
// When includeMessage is set the body is "who @ where: text". The rule's
// name takes precedence over the author name.
func NewNotification(e *InboundEvent, r *Rule, includeMessage bool) Notification {
	who := e.Who()
	if r != nil && r.Name != "" {
		who = r.Name
	}
	msg := who + " @ " + e.Where()
	if includeMessage {
		text := strings.TrimSpace(e.Content)
		if text == "" {
			text = emptyContentText
		}
		msg += ": " + text
	}

	n := Notification{
		Title:   NotificationTitle,
		Message: msg,
	}
	if r != nil {
		n.Sound = r.PushSound
	}
	if e.JumpURL != "" {
		n.URL = e.JumpURL
		n.URLTitle = NotificationURLTitle
	}
	return n
}
