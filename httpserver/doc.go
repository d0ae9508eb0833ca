/*
Package httpserver implements the HTTP front of the templatizer service.

It receives platform webhook deliveries, verifies their signature, hands push
events to the propagation planner and passes emitted plans to the configured
executor. A small read-only API exposes the persisted configuration store.

# Webhook Flow

  - The raw body is read (at most 25MB) before anything else, since the
    signature covers the exact bytes received
  - X-Hub-Signature is checked against the webhook secret; a mismatch is
    answered with 403 and the delivery goes no further
  - Events other than push, including ping, are acknowledged with 200
  - Push payloads are decoded with go-github and planned; each delivery gets
    its own timeout covering every outbound call
  - The response is a JSON summary of the terminal planner state

Redelivered webhooks are safe to process again: configuration writes are
upserts and planning has no other side effects.

# Endpoints

  - POST /api/github/webhook - Webhook deliveries
  - POST /GitHub/webhook - Alias kept for existing app installations
  - GET /api/configs/{repo_id} - Stored configuration of a repository
  - GET /api/subscribers?ref=owner/repo/group - Stored configurations subscribing to a group
  - GET /livez - Liveness check
  - GET /readyz - Readiness check, including config store availability
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

# Example Usage

	handler, err := httpserver.NewHandler(httpserver.HandlerConfig{
		Signatures: credentialManager,
		Planner:    planner.NewPlanner(resolver, store, planner.Options{Log: logger}),
		Executor:   planner.NewLogExecutor(logger, metricsSrv.Collectors),
		Store:      store,
		Metrics:    metricsSrv.Collectors,
		Log:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to create handler: %v", err)
	}

	server, err := httpserver.New(cfg, handler, metricsSrv)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
