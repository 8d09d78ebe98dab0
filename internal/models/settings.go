// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

package models

import "strings"

// PushoverSettings configures the remote push sink.
type PushoverSettings struct {
	Enabled        bool   `json:"enabled"`
	APIToken       string `json:"api_token" validate:"max=64"`
	UserKey        string `json:"user_key" validate:"max=64"`
	IncludeMessage bool   `json:"include_message"`
}

// Settings is the user-editable application state persisted next to the
// rule set.
type Settings struct {
	BotToken string           `json:"bot_token" validate:"max=256"`
	Pushover PushoverSettings `json:"pushover"`
	Muted    bool             `json:"muted"`
}

// Credentials returns the Pushover credentials with whitespace removed.
func (p PushoverSettings) Credentials() PushCredentials {
	return PushCredentials{
		APIToken: strings.TrimSpace(p.APIToken),
		UserKey:  strings.TrimSpace(p.UserKey),
	}
}

// PushCredentials identify the application and recipient at the push
// provider.
type PushCredentials struct {
	APIToken string
	UserKey  string
}

// Valid reports whether both credentials are present.
func (c PushCredentials) Valid() bool {
	return c.APIToken != "" && c.UserKey != ""
}

// Redacted returns a copy of s safe to return over the API.
func (s Settings) Redacted(mask func(string) string) Settings {
	out := s
	out.BotToken = mask(s.BotToken)
	out.Pushover.APIToken = mask(s.Pushover.APIToken)
	out.Pushover.UserKey = mask(s.Pushover.UserKey)
	return out
}
