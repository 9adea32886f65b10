package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/providers"
	"polyinfer-hq/polyinfer/pkg/telemetry/tracing"
)

// errSettled is returned by an attempt that finished after another
// attempt already settled the call. Such attempts record nothing.
var errSettled = errors.New("call already settled")

// call is the dispatch state of one Say invocation.
type call struct {
	o      *Orchestrator
	cfg    *config.Config
	prompt string
	logger *slog.Logger

	// mu guards settled and serializes metric updates of this call, so
	// that nothing is recorded once a winner has settled.
	mu      sync.Mutex
	settled bool
}

// sequence tries providers one at a time in ranking order.
func (c *call) sequence(ctx context.Context, ranking []*config.ProviderConfig) (*Result, error) {
	failures := make([]*providers.CallError, 0, len(ranking))
	for _, p := range ranking {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("say cancelled: %w", err)
		}
		res, err := c.provider(ctx, p)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("say cancelled: %w", ctx.Err())
		}
		failures = append(failures, asCallError(p.Name, err))
	}
	return nil, c.exhausted(failures)
}

// race runs every provider at once. The first success settles the call
// and cancels the others. Attempts still in flight are not awaited.
func (c *call) race(ctx context.Context, ranking []*config.ProviderConfig) (*Result, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		provider string
		res      *Result
		err      error
	}
	outcomes := make(chan outcome, len(ranking))

	for _, p := range ranking {
		go func(p *config.ProviderConfig) {
			res, err := c.provider(raceCtx, p)
			outcomes <- outcome{provider: p.Name, res: res, err: err}
		}(p)
	}

	failures := make([]*providers.CallError, 0, len(ranking))
	for range ranking {
		out := <-outcomes
		if out.res != nil {
			return out.res, nil
		}
		if errors.Is(out.err, errSettled) || ctx.Err() != nil {
			continue
		}
		failures = append(failures, asCallError(out.provider, out.err))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("say cancelled: %w", err)
	}
	return nil, c.exhausted(failures)
}

// provider runs the key fallback loop of one provider.
func (c *call) provider(ctx context.Context, p *config.ProviderConfig) (*Result, error) {
	candidates, err := c.o.selector.Select(p.Name, p.APIKeyFromEnv, p.Strategy())
	if err != nil {
		c.logger.WarnContext(ctx, "provider skipped",
			"provider", p.Name,
			"api_key_from_env", p.APIKeyFromEnv,
			"error", err,
		)
		return nil, &providers.CallError{
			Provider: p.Name,
			Stage:    providers.StageKeys,
			KeyIndex: -1,
			Cause:    err,
		}
	}

	var last error
	for i, key := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res, err := c.attempt(ctx, p, i, len(candidates), key)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, errSettled) || ctx.Err() != nil {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// attempt performs one provider call with one key.
func (c *call) attempt(ctx context.Context, p *config.ProviderConfig, idx, total int, key string) (*Result, error) {
	attrs := append(tracing.ProviderAttributes(p.Name, p.Model),
		attribute.Int(tracing.AttrKeyIndex, idx),
		attribute.Int(tracing.AttrKeyCount, total),
	)
	ctx, span := c.o.tracer.Start(ctx, "polyinfer.attempt", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	resp, err := c.o.client.Call(ctx, p, providers.Request{
		Input:      c.prompt,
		APIKey:     key,
		KeyIndex:   idx,
		RepairBody: c.cfg.RepairBody,
	})
	latency := time.Since(start)

	if err != nil {
		// Abandoned attempts are neither successes nor failures.
		if ctx.Err() != nil {
			span.SetAttributes(attribute.Bool(tracing.AttrCancelled, true))
			return nil, err
		}
		if !c.fail(p.Name, latency) {
			span.SetAttributes(attribute.Bool(tracing.AttrCancelled, true))
			return nil, errSettled
		}

		var ce *providers.CallError
		if errors.As(err, &ce) {
			span.SetAttributes(
				attribute.String(tracing.AttrStage, string(ce.Stage)),
				attribute.Int(tracing.AttrStatusCode, ce.StatusCode),
			)
		}
		tracing.SetStatus(span, err)
		c.logger.WarnContext(ctx, "provider attempt failed",
			"provider", p.Name,
			"key_index", idx,
			"latency", latency,
			"error", err,
		)
		return nil, err
	}

	if !c.win(p.Name, latency) {
		span.SetAttributes(attribute.Bool(tracing.AttrCancelled, true))
		return nil, errSettled
	}
	tracing.SetStatus(span, nil)
	c.logger.InfoContext(ctx, "provider attempt succeeded",
		"provider", p.Name,
		"key_index", idx,
		"latency", latency,
	)

	return &Result{
		Text:        resp.Text,
		RawResponse: resp.Raw,
		Provider:    p.Name,
		body:        resp.Body,
	}, nil
}

// fail records a failed attempt. It reports false if the call had already
// settled, in which case nothing is recorded.
func (c *call) fail(provider string, latency time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settled {
		return false
	}
	c.record(provider, metrics.OutcomeFailure, latency)
	return true
}

// win settles the call for provider. Only the first caller wins.
func (c *call) win(provider string, latency time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settled {
		return false
	}
	c.settled = true
	c.record(provider, metrics.OutcomeSuccess, latency)
	return true
}

func (c *call) record(provider string, outcome metrics.Outcome, latency time.Duration) {
	if c.cfg.Metrics {
		c.o.metrics.Record(provider, outcome, latency)
	}
}

// exhausted builds the aggregate failure with entries in declared order.
func (c *call) exhausted(failures []*providers.CallError) error {
	order := make(map[string]int, len(c.cfg.Providers))
	for i, p := range c.cfg.Providers {
		order[p.Name] = i
	}
	sort.SliceStable(failures, func(i, j int) bool {
		return order[failures[i].Provider] < order[failures[j].Provider]
	})

	c.logger.Error("all providers failed", "providers", len(failures))
	return &AllProvidersFailedError{Failures: failures}
}

func asCallError(provider string, err error) *providers.CallError {
	var ce *providers.CallError
	if errors.As(err, &ce) {
		return ce
	}
	return &providers.CallError{
		Provider: provider,
		Stage:    providers.StageTransport,
		KeyIndex: -1,
		Cause:    err,
	}
}
