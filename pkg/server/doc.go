// Package server exposes an orchestrator over HTTP.
//
// # Routes
//
//	POST /say                 {"prompt": "...", "mode": "concurrent"}
//	POST /demo                {"prompt": "..."}
//	GET  /metrics             per-provider metrics with success rates
//	POST /reset-metrics       drop every per-provider metric
//	POST /clear-cache         drop every cached result
//	GET  /config              the configuration document (key variable names only)
//	GET  /health              liveness
//	GET  /metrics/prometheus  Prometheus exposition, when an exporter is attached
//
// Every JSON body carries a "success" flag. Unknown paths answer 404 with
// the list of available endpoints. A missing or blank prompt answers 400;
// any other failure answers 500 with the error message and, when every
// provider failed, one entry per provider.
//
// # Usage
//
//	srv := server.New(cfg.Server, orch, server.WithLogger(logger))
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully
// within ServerConfig.ShutdownTimeout.
package server
