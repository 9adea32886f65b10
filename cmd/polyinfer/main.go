// Polyinfer sends prompts to several LLM inference APIs and returns the
// first usable answer.
//
// Providers are described in a configuration document: endpoint, body and
// header templates, the environment variables holding API keys and where
// the answer sits in the response. Calls either try providers one after
// another or race them all.
//
// Usage:
//
//	# Serve the HTTP API
//	polyinfer serve --config polyinfer.yaml
//
//	# One-off prompt from the shell
//	polyinfer say "Explain backpressure in one sentence" --mode concurrent
//
//	# Run both modes and print metrics
//	polyinfer demo "What is 2+2?"
//
//	# Check a configuration document
//	polyinfer validate --config polyinfer.yaml
package main

func main() {
	Execute()
}
