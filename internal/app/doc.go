// Package app wires the csvmapper web service together and manages its
// lifecycle.
//
// # Initialization Flow
//
// NewApplication performs the following steps:
//
//	1. Validate configuration
//	2. Initialize logging and OpenTelemetry providers
//	3. Create mapping metrics, the mapping service and the health service
//	4. Build the chi router with its middleware chain
//	5. Create the HTTP server
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	application, err := app.NewApplication(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run stops on SIGINT, SIGTERM or context cancellation. In-flight requests
// get Server.ShutdownTimeout to finish, then telemetry providers are flushed.
// An expired-session janitor runs alongside the server for its whole life.
//
// The package never calls os.Exit; errors are returned to the caller.
package app
