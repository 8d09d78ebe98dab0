// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

/*
Package supervisor provides process supervision for TalkAlert using suture v4.

Long-running services are grouped into three layers so that a crash in one
layer is restarted without stopping the others:

	RootSupervisor ("talkalert")
	├── DispatchSupervisor ("dispatch-layer")
	│   ├── EngineService
	│   └── ResultConsumerService "history-recorder" (if history is enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   └── ResultConsumerService "result-forwarder"
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Services return suture.ErrDoNotRestart when they finish for good. The
engine is single-shot: once its event source ends it reports Stopped and
the EngineService is not restarted. A failed source connect leaves the
engine Idle and the service is retried with suture's backoff.

Supervisor events are logged through sutureslog:

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	tree.AddDispatchService(services.NewEngineService(engine, src, 5*time.Second))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
