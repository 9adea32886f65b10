// Package orchestrator dispatches prompts across configured LLM providers.
//
// # Overview
//
// An Orchestrator owns one configuration, a result cache and a metrics
// collector. Say runs one call:
//
//  1. Cache lookup keyed by the prompt and the effective configuration.
//  2. Ranking of the providers for this call (see Promotion).
//  3. Dispatch in synchronous or concurrent mode.
//  4. Metrics update, cache store and result.
//
// # Dispatch Modes
//
// Synchronous mode tries providers one at a time in ranked order. Each
// provider tries its candidate keys in selector order. The first success
// wins; every failed attempt is recorded as a failure of its provider.
//
// Concurrent mode starts every provider at once, each running the same
// key loop. The first success settles the call and cancels the others.
// An attempt that finishes after settlement records nothing, and an
// attempt abandoned through cancellation is not a failure. When two
// attempts finish together the one that settles first wins.
//
// # Promotion
//
// A provider that won ConsecutiveSuccess synchronous calls in a row is
// tried first by subsequent calls until it stops winning. The declared
// provider order is never modified.
//
// # Errors
//
// Per-attempt failures are *providers.CallError values. They only leave
// Say inside *AllProvidersFailedError, which lists the last failure of
// every provider in declared order:
//
//	res, err := orch.Say(ctx, "Hello")
//	var all *orchestrator.AllProvidersFailedError
//	if errors.As(err, &all) {
//	    for _, f := range all.Failures {
//	        log.Printf("%s: %v", f.Provider, f.Cause)
//	    }
//	}
package orchestrator
