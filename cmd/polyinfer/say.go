package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/cli"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/orchestrator"
)

var sayFlags struct {
	mode string
}

var sayCmd = &cobra.Command{
	Use:   "say <prompt>",
	Short: "Send one prompt",
	Long: `Send one prompt to the configured providers and print the answer.

With the text format only the answer is printed; --verbose adds the
provider and elapsed time on stderr. The json and yaml formats print the
full result including the raw provider response.

Examples:
  polyinfer say "What is the capital of France?"
  polyinfer say --mode concurrent "Summarize RFC 2119"
  polyinfer say -o json "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSay,
}

func init() {
	rootCmd.AddCommand(sayCmd)

	sayCmd.Flags().StringVarP(&sayFlags.mode, "mode", "m", "", "dispatch mode: synchronous, concurrent (default from config)")
}

// sayOutput is the structured form of a say result.
type sayOutput struct {
	Prompt      string `json:"prompt" yaml:"prompt"`
	Response    string `json:"response" yaml:"response"`
	Provider    string `json:"provider" yaml:"provider"`
	Mode        string `json:"mode" yaml:"mode"`
	Cached      bool   `json:"cached" yaml:"cached"`
	ElapsedMs   int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
	RawResponse any    `json:"raw_response" yaml:"raw_response"`
}

func (o sayOutput) String() string {
	return o.Response
}

func runSay(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
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

	mode := a.cfg.Mode
	var opts []orchestrator.SayOption
	if sayFlags.mode != "" {
		m, err := config.ParseMode(sayFlags.mode)
		if err != nil {
			return err
		}
		mode = m
		opts = append(opts, orchestrator.WithMode(m))
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	res, err := a.orch.Say(ctx, prompt, opts...)
	if err != nil {
		return commandError(ctx, "say", err)
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "provider=%s elapsed=%s cached=%t\n",
			res.Provider, res.Elapsed.Round(time.Millisecond), res.Cached)
	}

	return f.FormatTo(cmd.OutOrStdout(), sayOutput{
		Prompt:      prompt,
		Response:    res.Text,
		Provider:    res.Provider,
		Mode:        string(mode),
		Cached:      res.Cached,
		ElapsedMs:   res.Elapsed.Milliseconds(),
		RawResponse: res.RawResponse,
	})
}
