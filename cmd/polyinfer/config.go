package main

import (
	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration document after defaults and environment
overrides are applied. Only key variable names are shown, never their
values. The default output format is yaml.

Examples:
  polyinfer config
  polyinfer config -o json`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cli.OutputFormat(format)
	if !cmd.Flags().Changed("format") {
		out = cli.FormatYAML
	}
	f, err := cli.NewFormatter(out)
	if err != nil {
		return err
	}
	if _, ok := f.(*cli.TextFormatter); ok {
		f = &cli.YAMLFormatter{}
	}

	return f.FormatTo(cmd.OutOrStdout(), cfg.Document())
}
