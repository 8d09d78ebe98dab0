// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

/*
Package api provides the HTTP control surface for TalkAlert.

Routes:

	GET    /api/v1/health         liveness
	GET    /api/v1/status         engine, connection, mute, rule count
	GET    /api/v1/rules          list rules
	PUT    /api/v1/rules          replace all rules
	POST   /api/v1/rules          insert or update one rule
	DELETE /api/v1/rules/{id}     remove a rule
	GET    /api/v1/mute           read the mute flag
	PUT    /api/v1/mute           set the mute flag
	GET    /api/v1/settings       settings with secrets redacted
	PUT    /api/v1/settings       partial settings update
	POST   /api/v1/test/sound     play a sound now
	POST   /api/v1/test/push      send a test notification
	POST   /api/v1/events         inject an event (feed and nats modes)
	GET    /api/v1/history        recent dispatch results
	GET    /ws                    live dispatch results and connection state
	GET    /metrics               Prometheus metrics

Every response uses the envelope

	{"status":"success|error","data":...,"metadata":{"timestamp":...},"error":{...}}

Every mutation is persisted to the state file before the response is sent.
*/
package api
