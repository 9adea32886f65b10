package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/cli"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/orchestrator"
)

var benchFlags struct {
	requests    int
	concurrency int
	mode        string
	unique      bool
}

var benchCmd = &cobra.Command{
	Use:   "bench <prompt>",
	Short: "Send a prompt repeatedly and report latency",
	Long: `Send the prompt --requests times with --concurrency callers and report
throughput, latency percentiles and the per-provider metrics.

With the cache enabled every call after the first is a cache hit; use
--unique to append the request number to each prompt.

Examples:
  polyinfer bench "ping" --requests 50 --concurrency 5
  polyinfer bench "ping" --mode concurrent --unique`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&benchFlags.requests, "requests", "n", 20, "number of prompts to send")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 1, "concurrent callers")
	benchCmd.Flags().StringVarP(&benchFlags.mode, "mode", "m", "", "dispatch mode: synchronous, concurrent (default from config)")
	benchCmd.Flags().BoolVar(&benchFlags.unique, "unique", false, "make every prompt distinct to bypass the cache")
}

// benchReport is the outcome of a bench run.
type benchReport struct {
	Requests    int                               `json:"requests" yaml:"requests"`
	Interrupted bool                              `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Succeeded   int                               `json:"succeeded" yaml:"succeeded"`
	Failed      int                               `json:"failed" yaml:"failed"`
	CacheHits   int                               `json:"cache_hits" yaml:"cache_hits"`
	Duration    time.Duration                     `json:"duration_ns" yaml:"duration_ns"`
	Throughput  float64                           `json:"throughput" yaml:"throughput"`
	Latency     latencySummary                    `json:"latency" yaml:"latency"`
	Winners     map[string]int                    `json:"winners" yaml:"winners"`
	Metrics     map[string]metrics.ProviderMetric `json:"metrics" yaml:"metrics"`
}

type latencySummary struct {
	Min    time.Duration `json:"min_ns" yaml:"min_ns"`
	Mean   time.Duration `json:"mean_ns" yaml:"mean_ns"`
	Median time.Duration `json:"median_ns" yaml:"median_ns"`
	P95    time.Duration `json:"p95_ns" yaml:"p95_ns"`
	P99    time.Duration `json:"p99_ns" yaml:"p99_ns"`
	Max    time.Duration `json:"max_ns" yaml:"max_ns"`
}

func (r benchReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requests:        %d total, %d successful, %d failed, %d cached\n",
		r.Requests, r.Succeeded, r.Failed, r.CacheHits)
	if r.Interrupted {
		b.WriteString("                 (interrupted)\n")
	}
	fmt.Fprintf(&b, "Duration:        %.1fs\n", r.Duration.Seconds())
	fmt.Fprintf(&b, "Throughput:      %.2f prompts/s\n", r.Throughput)

	if r.Succeeded > 0 {
		ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
		b.WriteString("\nLatency:\n")
		fmt.Fprintf(&b, "  Min:     %.1fms\n", ms(r.Latency.Min))
		fmt.Fprintf(&b, "  Mean:    %.1fms\n", ms(r.Latency.Mean))
		fmt.Fprintf(&b, "  Median:  %.1fms\n", ms(r.Latency.Median))
		fmt.Fprintf(&b, "  p95:     %.1fms\n", ms(r.Latency.P95))
		fmt.Fprintf(&b, "  p99:     %.1fms\n", ms(r.Latency.P99))
		fmt.Fprintf(&b, "  Max:     %.1fms\n", ms(r.Latency.Max))
	}

	if len(r.Winners) > 0 {
		names := make([]string, 0, len(r.Winners))
		for name := range r.Winners {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\nAnswered by:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %-16s %d\n", name, r.Winners[name])
		}
	}

	b.WriteString("\n")
	b.WriteString(metricsTable(r.Metrics))
	return strings.TrimRight(b.String(), "\n")
}

func runBench(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	if err := orchestrator.ValidatePrompt(prompt); err != nil {
		return err
	}
	if benchFlags.requests < 1 || benchFlags.concurrency < 1 {
		return fmt.Errorf("--requests and --concurrency must be at least 1")
	}

	f, err := formatter()
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	var opts []orchestrator.SayOption
	if benchFlags.mode != "" {
		m, err := config.ParseMode(benchFlags.mode)
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithMode(m))
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	report := runLoad(ctx, a.orch, prompt, opts, cli.NewBar(cmd.ErrOrStderr()))
	report.Metrics = a.orch.Metrics()
	report.Interrupted = cli.Interrupted(ctx)

	return f.FormatTo(cmd.OutOrStdout(), report)
}

// runLoad sends the prompt benchFlags.requests times from
// benchFlags.concurrency workers.
func runLoad(ctx context.Context, orch *orchestrator.Orchestrator, prompt string, opts []orchestrator.SayOption, progress cli.ProgressReporter) benchReport {
	total := benchFlags.requests
	jobs := make(chan int)

	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, total)
		winners   = make(map[string]int)
		failed    int
		cacheHits int
		wg        sync.WaitGroup
	)

	progress.Start(total)
	start := time.Now()

	for w := 0; w < benchFlags.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := prompt
				if benchFlags.unique {
					p = fmt.Sprintf("%s #%d", prompt, i)
				}
				res, err := orch.Say(ctx, p, opts...)

				mu.Lock()
				if err != nil {
					failed++
				} else {
					latencies = append(latencies, res.Elapsed)
					winners[res.Provider]++
					if res.Cached {
						cacheHits++
					}
				}
				mu.Unlock()

				progress.Done(err == nil)
			}
		}()
	}

	sent := 0
feed:
	for ; sent < total; sent++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- sent:
		}
	}
	close(jobs)
	wg.Wait()
	progress.Finish()

	duration := time.Since(start)
	report := benchReport{
		Requests:  sent,
		Succeeded: len(latencies),
		Failed:    failed,
		CacheHits: cacheHits,
		Duration:  duration,
		Latency:   summarize(latencies),
		Winners:   winners,
	}
	if duration > 0 {
		report.Throughput = float64(report.Succeeded) / duration.Seconds()
	}
	return report
}

// summarize computes latency percentiles by nearest rank.
func summarize(latencies []time.Duration) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}

	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	at := func(q float64) time.Duration {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return sorted[i]
	}

	return latencySummary{
		Min:    sorted[0],
		Mean:   sum / time.Duration(len(sorted)),
		Median: at(0.5),
		P95:    at(0.95),
		P99:    at(0.99),
		Max:    sorted[len(sorted)-1],
	}
}
