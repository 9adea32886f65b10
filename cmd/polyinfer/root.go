package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	envFile string
	verbose bool
	format  string
)

var rootCmd = &cobra.Command{
	Use:   "polyinfer",
	Short: "Polyinfer - multi-provider LLM orchestration",
	Long: `Polyinfer sends prompts to several LLM inference APIs and returns the
first usable answer.

Providers are tried one after another (synchronous mode) or raced
(concurrent mode). Within a provider, API keys are tried in the order the
provider's key strategy selects. Results can be cached and every attempt is
counted in per-provider metrics.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "polyinfer.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with provider API keys")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "o", "text", "output format: text, json, yaml")
}

// loadEnvFile loads API keys from the dotenv file. Variables already set
// in the environment win. A missing default file is not an error.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	err := godotenv.Load(envFile)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return cli.NewConfigError(envFile, err)
}

// commandError names the command that failed. A call cut short by
// SIGINT or SIGTERM reports the interruption instead of the context error.
func commandError(ctx context.Context, command string, err error) error {
	if cli.Interrupted(ctx) {
		err = context.Cause(ctx)
	}
	return cli.NewCommandError(command, err)
}

// formatter returns the formatter selected with --format.
func formatter() (cli.Formatter, error) {
	return cli.NewFormatter(cli.OutputFormat(format))
}
