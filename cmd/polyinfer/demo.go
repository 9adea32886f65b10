package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/cli"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/orchestrator"
)

var demoCmd = &cobra.Command{
	Use:   "demo [prompt]",
	Short: "Run a prompt in both modes and print metrics",
	Long: `Run the prompt in synchronous mode, then in concurrent mode, and print
both answers followed by the per-provider metrics.

Examples:
  polyinfer demo
  polyinfer demo "Name three prime numbers"`,
	RunE: runDemo,
}

// DefaultDemoPrompt is used when demo is run without a prompt.
const DefaultDemoPrompt = "What is the capital of France?"

func init() {
	rootCmd.AddCommand(demoCmd)
}

// demoOutput is the structured form of a demo report.
type demoOutput struct {
	Prompt      string                            `json:"prompt" yaml:"prompt"`
	Synchronous demoResult                        `json:"synchronous" yaml:"synchronous"`
	Concurrent  demoResult                        `json:"concurrent" yaml:"concurrent"`
	Metrics     map[string]metrics.ProviderMetric `json:"metrics" yaml:"metrics"`
}

type demoResult struct {
	Response  string `json:"response" yaml:"response"`
	Provider  string `json:"provider" yaml:"provider"`
	ElapsedMs int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
	Cached    bool   `json:"cached" yaml:"cached"`
}

func newDemoResult(res *orchestrator.Result) demoResult {
	return demoResult{
		Response:  res.Text,
		Provider:  res.Provider,
		ElapsedMs: res.Elapsed.Milliseconds(),
		Cached:    res.Cached,
	}
}

func (o demoOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt: %s\n\n", o.Prompt)
	fmt.Fprintf(&b, "Synchronous (%s, %dms):\n  %s\n\n", o.Synchronous.Provider, o.Synchronous.ElapsedMs, o.Synchronous.Response)
	fmt.Fprintf(&b, "Concurrent (%s, %dms):\n  %s\n\n", o.Concurrent.Provider, o.Concurrent.ElapsedMs, o.Concurrent.Response)
	b.WriteString(metricsTable(o.Metrics))
	return strings.TrimRight(b.String(), "\n")
}

// metricsTable renders metrics one provider per line, sorted by name.
func metricsTable(m map[string]metrics.ProviderMetric) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Metrics:\n")
	if len(names) == 0 {
		b.WriteString("  (none)\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  %-16s %8s %8s %8s %10s %12s\n", "PROVIDER", "SUCCESS", "FAILURE", "COUNT", "RATE", "LATENCY")
	for _, name := range names {
		pm := m[name]
		fmt.Fprintf(&b, "  %-16s %8d %8d %8d %9.1f%% %10.1fms\n",
			name, pm.Success, pm.Failure, pm.Count, pm.SuccessRate(), pm.Latency)
	}
	return b.String()
}

func runDemo(cmd *cobra.Command, args []string) error {
	prompt := DefaultDemoPrompt
	if len(args) > 0 {
		prompt = strings.Join(args, " ")
	}
	if err := orchestrator.ValidatePrompt(prompt); err != nil {
		return err
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

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	report, err := a.orch.Demo(ctx, prompt)
	if err != nil {
		return commandError(ctx, "demo", err)
	}

	return f.FormatTo(cmd.OutOrStdout(), demoOutput{
		Prompt:      report.Prompt,
		Synchronous: newDemoResult(report.Synchronous),
		Concurrent:  newDemoResult(report.Concurrent),
		Metrics:     report.Metrics,
	})
}
