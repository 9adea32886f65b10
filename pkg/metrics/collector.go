// Package metrics aggregates per-provider call outcomes.
//
// The Collector keeps success and failure counts and a running mean
// latency per provider name. Entries are created on the first event for a
// provider and live until Reset. An optional Exporter mirrors every event
// into Prometheus collectors.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outcome is the result of one provider attempt.
type Outcome string

const (
	// OutcomeSuccess marks an attempt that produced a usable answer.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure marks an attempt that failed at any stage.
	OutcomeFailure Outcome = "failure"
)

// ProviderMetric is the aggregate for one provider.
type ProviderMetric struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
	Count   int64 `json:"count"`

	// Latency is the running mean attempt latency in milliseconds.
	Latency float64 `json:"latency"`
}

// SuccessRate returns the share of successful attempts as a percentage.
func (m ProviderMetric) SuccessRate() float64 {
	if m.Count == 0 {
		return 0
	}
	return float64(m.Success) / float64(m.Count) * 100
}

// Collector aggregates provider outcomes. It is safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	providers map[string]*ProviderMetric
	exporter  *Exporter
}

// Option configures a Collector.
type Option func(*Collector)

// WithExporter mirrors recorded events into Prometheus.
func WithExporter(e *Exporter) Option {
	return func(c *Collector) {
		c.exporter = e
	}
}

// NewCollector creates an empty collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{providers: make(map[string]*ProviderMetric)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record adds one attempt outcome for provider.
func (c *Collector) Record(provider string, outcome Outcome, latency time.Duration) {
	ms := float64(latency) / float64(time.Millisecond)

	c.mu.Lock()
	m, ok := c.providers[provider]
	if !ok {
		m = &ProviderMetric{}
		c.providers[provider] = m
	}
	switch outcome {
	case OutcomeSuccess:
		m.Success++
	default:
		m.Failure++
	}
	m.Count++
	m.Latency += (ms - m.Latency) / float64(m.Count)
	c.mu.Unlock()

	if c.exporter != nil {
		c.exporter.ObserveAttempt(provider, outcome, latency)
	}
}

// Snapshot returns a copy of the current aggregates.
func (c *Collector) Snapshot() map[string]ProviderMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ProviderMetric, len(c.providers))
	for name, m := range c.providers {
		out[name] = *m
	}
	return out
}

// Get returns the aggregate for one provider.
func (c *Collector) Get(provider string) (ProviderMetric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.providers[provider]
	if !ok {
		return ProviderMetric{}, false
	}
	return *m, true
}

// Providers returns the names with recorded events, sorted.
func (c *Collector) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every aggregate. Prometheus counters are monotonic and are
// not reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.providers = make(map[string]*ProviderMetric)
	c.mu.Unlock()

	if c.exporter != nil {
		c.exporter.ObserveReset()
	}
}

// Exporter returns the attached exporter, if any.
func (c *Collector) Exporter() *Exporter {
	return c.exporter
}
