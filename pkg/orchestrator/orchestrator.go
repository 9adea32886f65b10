package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"polyinfer-hq/polyinfer/pkg/cache"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/keys"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/providers"
	"polyinfer-hq/polyinfer/pkg/telemetry/logging"
	"polyinfer-hq/polyinfer/pkg/telemetry/tracing"
)

// Result is the outcome of a successful Say call.
type Result struct {
	// Text is the extracted answer.
	Text string `json:"text"`

	// RawResponse is the full decoded response body of the winning
	// provider.
	RawResponse any `json:"raw_response"`

	// Provider is the name of the provider that answered.
	Provider string `json:"provider"`

	// Elapsed is the wall time of the call.
	Elapsed time.Duration `json:"elapsed"`

	// Cached reports whether the result was served from the cache.
	Cached bool `json:"cached"`

	body []byte
}

// entry is the cached form of a Result. The body is decoded again on every
// hit so no two callers share a decoded response.
type entry struct {
	text     string
	provider string
	body     []byte
}

func (e entry) result() (*Result, error) {
	var raw any
	if err := json.Unmarshal(e.body, &raw); err != nil {
		return nil, err
	}
	return &Result{
		Text:        e.text,
		RawResponse: raw,
		Provider:    e.provider,
		Cached:      true,
		body:        e.body,
	}, nil
}

// Orchestrator dispatches prompts across the configured providers.
// A single instance is shared by all callers and is safe for concurrent
// use.
type Orchestrator struct {
	cfg    atomic.Pointer[config.Config]
	closed atomic.Bool

	client         *providers.Client
	selector       *keys.Selector
	results        *cache.Cache[entry]
	metrics        *metrics.Collector
	exporter       *metrics.Exporter
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	// streaks counts consecutive synchronous wins per provider.
	streakMu sync.Mutex
	streaks  map[string]int

	sweepMu     sync.Mutex
	sweeper     *cache.Sweeper
	cancelSweep context.CancelFunc
	schedule    string
}

// New creates an orchestrator holding a copy of cfg, prepared if it was
// not already. A configuration that fails validation is returned
// as an error and no orchestrator is created.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		results: cache.New[entry](),
		logger:  slog.Default(),
		streaks: make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		o.client = providers.NewClient(providers.WithLogger(o.logger))
	}
	if o.selector == nil {
		o.selector = keys.NewSelector()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	o.tracer = o.tracerProvider.Tracer(tracing.InstrumentationName)
	o.metrics = metrics.NewCollector(metrics.WithExporter(o.exporter))
	o.logger = o.logger.With("component", "orchestrator")

	if err := o.Init(cfg); err != nil {
		return nil, err
	}
	return o, nil
}

// Init replaces the whole configuration with a copy of cfg. Later changes
// to cfg are not seen. The previous configuration stays
// in effect if cfg is invalid. Promotion streaks start over.
func (o *Orchestrator) Init(cfg *config.Config) error {
	prepared, err := prepare(cfg)
	if err != nil {
		return err
	}

	o.cfg.Store(prepared)

	o.streakMu.Lock()
	o.streaks = make(map[string]int)
	o.streakMu.Unlock()

	o.configureSweeper(prepared)

	o.logger.Info("configuration initialized",
		"providers", len(prepared.Providers),
		"mode", prepared.Mode,
		"cache_enabled", prepared.Cache.Enabled,
		"metrics_enabled", prepared.Metrics,
	)
	return nil
}

func prepare(cfg *config.Config) (*config.Config, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	c := cfg.Clone()
	if c.Prepared() {
		return c, nil
	}
	if err := c.Prepare(); err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return c, nil
}

// Config returns the current configuration. It must not be modified.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg.Load()
}

// Say sends prompt to the configured providers and returns the first
// usable answer. Per-attempt failures drive the fallback and are only
// surfaced inside *AllProvidersFailedError when nothing succeeded.
func (o *Orchestrator) Say(ctx context.Context, prompt string, opts ...SayOption) (*Result, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}

	cfg, err := o.effectiveConfig(opts)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithMode(ctx, string(cfg.Mode))
	ctx, span := o.tracer.Start(ctx, "polyinfer.say",
		trace.WithAttributes(attribute.String(tracing.AttrMode, string(cfg.Mode))))
	defer span.End()

	start := time.Now()

	var cacheKey string
	if cfg.Cache.Enabled {
		fingerprint, err := cfg.Fingerprint()
		if err != nil {
			o.logger.WarnContext(ctx, "cache key unavailable", "error", err)
		} else {
			cacheKey = cache.Key(prompt, fingerprint)
			if res, ok := o.cached(ctx, cacheKey); ok {
				o.observeCache(cfg, true)
				span.SetAttributes(
					attribute.Bool(tracing.AttrCacheHit, true),
					attribute.String(tracing.AttrWinner, res.Provider),
				)
				res.Elapsed = time.Since(start)
				return res, nil
			}
			o.observeCache(cfg, false)
		}
	}
	span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, false))

	c := &call{o: o, cfg: cfg, prompt: prompt, logger: o.attemptLogger(cfg)}
	ranking := o.rank(cfg)

	var res *Result
	if cfg.Mode == config.ModeConcurrent {
		res, err = c.race(ctx, ranking)
	} else {
		res, err = c.sequence(ctx, ranking)
		if ctx.Err() == nil {
			winner := ""
			if res != nil {
				winner = res.Provider
			}
			o.updateStreaks(winner)
		}
	}
	if err != nil {
		tracing.SetStatus(span, err)
		o.logger.DebugContext(ctx, "say failed", "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	res.Elapsed = time.Since(start)
	span.SetAttributes(attribute.String(tracing.AttrWinner, res.Provider))
	tracing.SetStatus(span, nil)

	if cacheKey != "" {
		o.results.Put(cacheKey, entry{text: res.Text, provider: res.Provider, body: res.body}, cfg.Cache.TTLDuration())
	}

	o.logger.DebugContext(ctx, "say completed", "provider", res.Provider, "elapsed", res.Elapsed)
	return res, nil
}

// cached returns a fresh copy of the result stored under key. An entry
// whose body no longer decodes is dropped and reported as a miss.
func (o *Orchestrator) cached(ctx context.Context, key string) (*Result, bool) {
	e, ok := o.results.Get(key)
	if !ok {
		return nil, false
	}
	res, err := e.result()
	if err != nil {
		o.logger.WarnContext(ctx, "discarding unreadable cache entry", "error", err)
		o.results.Delete(key)
		return nil, false
	}
	return res, true
}

// effectiveConfig resolves the configuration of one call without
// touching the stored one.
func (o *Orchestrator) effectiveConfig(opts []SayOption) (*config.Config, error) {
	var so sayOptions
	for _, opt := range opts {
		opt(&so)
	}

	cfg := o.cfg.Load()
	if so.config != nil {
		c, err := prepare(so.config)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if so.mode != "" {
		mode, err := config.ParseMode(string(so.mode))
		if err != nil {
			return nil, err
		}
		if mode != cfg.Mode {
			cfg = cfg.WithMode(mode)
		}
	}
	return cfg, nil
}

func (o *Orchestrator) attemptLogger(cfg *config.Config) *slog.Logger {
	if !cfg.Logging {
		return logging.Discard()
	}
	return o.logger
}

func (o *Orchestrator) observeCache(cfg *config.Config, hit bool) {
	if o.exporter == nil || !cfg.Metrics {
		return
	}
	if hit {
		o.exporter.ObserveCacheHit()
	} else {
		o.exporter.ObserveCacheMiss()
	}
}

// rank returns the providers of cfg in dispatch order for one call. A
// provider whose streak reached the promotion threshold moves to the
// front; the rest keep their declared order.
func (o *Orchestrator) rank(cfg *config.Config) []*config.ProviderConfig {
	ranking := make([]*config.ProviderConfig, len(cfg.Providers))
	for i := range cfg.Providers {
		ranking[i] = &cfg.Providers[i]
	}

	o.streakMu.Lock()
	defer o.streakMu.Unlock()

	for i, p := range ranking {
		if i > 0 && o.streaks[p.Name] >= cfg.ConsecutiveSuccess {
			copy(ranking[1:i+1], ranking[:i])
			ranking[0] = p
			break
		}
	}
	return ranking
}

// updateStreaks credits winner and resets every other provider. An empty
// winner resets all streaks.
func (o *Orchestrator) updateStreaks(winner string) {
	o.streakMu.Lock()
	defer o.streakMu.Unlock()

	for name := range o.streaks {
		if name != winner {
			delete(o.streaks, name)
		}
	}
	if winner != "" {
		o.streaks[winner]++
	}
}

// Streaks returns the current consecutive synchronous win counts.
func (o *Orchestrator) Streaks() map[string]int {
	o.streakMu.Lock()
	defer o.streakMu.Unlock()

	out := make(map[string]int, len(o.streaks))
	for name, n := range o.streaks {
		out[name] = n
	}
	return out
}

// Metrics returns a snapshot of the per-provider metrics.
func (o *Orchestrator) Metrics() map[string]metrics.ProviderMetric {
	return o.metrics.Snapshot()
}

// ResetMetrics drops every per-provider metric.
func (o *Orchestrator) ResetMetrics() {
	o.metrics.Reset()
	o.logger.Info("metrics reset")
}

// ClearCache drops every cached result.
func (o *Orchestrator) ClearCache() {
	o.results.Clear()
	o.logger.Info("cache cleared")
}

// CacheLen returns the number of cached results, including expired ones
// not yet removed.
func (o *Orchestrator) CacheLen() int {
	return o.results.Len()
}

// Exporter returns the Prometheus exporter, if any.
func (o *Orchestrator) Exporter() *metrics.Exporter {
	return o.exporter
}

// configureSweeper starts, restarts or stops the cache sweeper to match
// cfg.
func (o *Orchestrator) configureSweeper(cfg *config.Config) {
	schedule := ""
	if cfg.Cache.Enabled {
		schedule = cfg.Cache.SweepSchedule
	}

	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	if o.closed.Load() || schedule == o.schedule {
		return
	}
	o.stopSweeperLocked()
	o.schedule = schedule
	if schedule == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := cache.NewSweeper(o.results, o.logger)
	if err := s.Start(ctx, schedule); err != nil {
		cancel()
		o.logger.Warn("cache sweeper not started", "schedule", schedule, "error", err)
		return
	}
	o.sweeper = s
	o.cancelSweep = cancel
}

func (o *Orchestrator) stopSweeperLocked() {
	if o.sweeper == nil {
		return
	}
	o.cancelSweep()
	o.sweeper.Stop()
	o.sweeper = nil
	o.cancelSweep = nil
}

// Close stops background work and releases idle connections. Say fails
// with ErrClosed afterwards.
func (o *Orchestrator) Close() error {
	if o.closed.Swap(true) {
		return nil
	}

	o.sweepMu.Lock()
	o.stopSweeperLocked()
	o.sweepMu.Unlock()

	o.client.CloseIdleConnections()
	return nil
}
