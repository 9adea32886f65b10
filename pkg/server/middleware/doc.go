// Package middleware provides the HTTP middleware chain of the polyinfer
// server.
//
// # Chain
//
// The server wraps its mux in this order, outermost first:
//
//	handler = RecoveryMiddleware(logger)(
//	    RequestIDMiddleware(
//	        TracingMiddleware(tp)(
//	            LoggingMiddleware(logger)(mux))))
//
// Recovery turns panics into a 500 JSON body. RequestID reads or
// generates X-Request-ID and stores it in the context through
// logging.WithRequestID, so every log record written while serving the
// request carries it. Tracing continues an incoming W3C trace context and
// opens a server span. Logging writes one record per request with status
// and latency.
package middleware
