package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/keys"
)

var validateFlags struct {
	checkKeys bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and environment overrides,
and report every validation error.

With --check-keys the command also resolves each provider's key variables
from the environment and reports providers that would be skipped because no
key is set. Key values are never printed.

Examples:
  polyinfer validate
  polyinfer validate --config prod.yaml --check-keys`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkKeys, "check-keys", false, "check that every keyed provider has a usable key")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "✗ %s is invalid:\n", cfgFile)
			for _, fe := range verr.Errors {
				fmt.Fprintf(out, "  - %s\n", fe.Error())
			}
			return fmt.Errorf("%d validation errors", len(verr.Errors))
		}
		return err
	}

	fmt.Fprintf(out, "✓ Configuration valid: %s\n", cfgFile)
	fmt.Fprintf(out, "  mode: %s, consecutive_success: %d, cache: %s\n",
		cfg.Mode, cfg.ConsecutiveSuccess, cacheSummary(cfg.Cache))

	var missing []string
	selector := keys.NewSelector()
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		keyInfo := "keyless"
		if !p.Keyless() {
			keyInfo = fmt.Sprintf("%d key vars, strategy %s", len(p.APIKeyFromEnv), p.Strategy().Name())
		}
		fmt.Fprintf(out, "  %d. %s (%s) %s\n", i+1, p.Name, p.Model, keyInfo)

		if validateFlags.checkKeys && !p.Keyless() {
			if _, err := selector.Select(p.Name, p.APIKeyFromEnv, p.Strategy()); err != nil {
				missing = append(missing, p.Name)
			}
		}
	}

	if len(missing) > 0 {
		fmt.Fprintf(out, "✗ no usable key for: %s\n", strings.Join(missing, ", "))
		return fmt.Errorf("%d providers have no usable key", len(missing))
	}
	return nil
}

func cacheSummary(c config.CacheConfig) string {
	if !c.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("ttl %s", c.TTLDuration())
}
