package orchestrator

import (
	"context"
	"fmt"

	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/metrics"
)

// DemoReport is the outcome of Demo.
type DemoReport struct {
	Prompt      string                            `json:"prompt"`
	Synchronous *Result                           `json:"synchronous"`
	Concurrent  *Result                           `json:"concurrent"`
	Metrics     map[string]metrics.ProviderMetric `json:"metrics"`
}

// Demo runs prompt in synchronous mode and then in concurrent mode and
// returns both results with the metrics observed afterwards. The first
// failure aborts the demo.
func (o *Orchestrator) Demo(ctx context.Context, prompt string) (*DemoReport, error) {
	syncRes, err := o.Say(ctx, prompt, WithMode(config.ModeSynchronous))
	if err != nil {
		return nil, fmt.Errorf("synchronous run: %w", err)
	}
	concurrent, err := o.Say(ctx, prompt, WithMode(config.ModeConcurrent))
	if err != nil {
		return nil, fmt.Errorf("concurrent run: %w", err)
	}
	return &DemoReport{
		Prompt:      prompt,
		Synchronous: syncRes,
		Concurrent:  concurrent,
		Metrics:     o.Metrics(),
	}, nil
}
