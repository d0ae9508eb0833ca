/*
Package clients provides a client for the templatizer server's HTTP API.

ConfigClient reads the persisted configuration store through the read-only
endpoints and can replay signed webhook deliveries, which is how operators
re-run planning for a push without waiting for the platform to redeliver it.

	client := &clients.ConfigClient{ServerAddr: "http://127.0.0.1:8080"}
	cfg, err := client.GetConfig(ctx, 123456)
	if errors.Is(err, interfaces.ErrConfigNotFound) {
	    // repository never pushed a configuration
	}
*/
package clients
