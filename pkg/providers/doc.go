// Package providers performs templated HTTP calls against configured
// inference providers.
//
// A provider is described entirely by configuration: an endpoint, a body
// template, header templates and a response path. The Client renders the
// templates for one candidate key, POSTs the body, decodes the JSON
// response and extracts the answer text.
//
// Failures are reported as *CallError, which records the stage that failed
// and wraps a typed cause:
//
//   - *AuthError for 401 and 403 responses
//   - *RateLimitError for 429 responses, with the parsed Retry-After
//   - *StatusError for any other non-2xx response
//   - *TimeoutError when the per-provider timeout elapses
//   - *ParseError when a 2xx body is not JSON
//   - *extract.Error when the response path does not resolve
//
// The Client does not retry. Fallback across keys and providers belongs to
// the orchestrator.
//
//	client := providers.NewClient()
//	resp, err := client.Call(ctx, &cfg.Providers[0], providers.Request{
//	    Input:  "Hello",
//	    APIKey: key,
//	})
//	if err != nil {
//	    var ce *providers.CallError
//	    if errors.As(err, &ce) {
//	        log.Printf("%s failed at %s: %s", ce.Provider, ce.Stage, ce.RawBody)
//	    }
//	}
package providers
