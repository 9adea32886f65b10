package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"polyinfer-hq/polyinfer/pkg/providers"
)

// Common orchestration errors that can be checked with errors.Is().
var (
	// ErrAllProvidersFailed is returned when every provider and key
	// combination failed.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrInvalidPrompt is returned for an empty or whitespace-only prompt.
	// Say does not enforce it; front ends check with ValidatePrompt.
	ErrInvalidPrompt = errors.New("prompt is required")

	// ErrNilConfig is returned when no configuration is supplied.
	ErrNilConfig = errors.New("configuration is nil")

	// ErrClosed is returned by Say after Close.
	ErrClosed = errors.New("orchestrator is closed")
)

// AllProvidersFailedError carries one failure per provider, in declared
// configuration order.
type AllProvidersFailedError struct {
	// Failures holds the last failure of each provider.
	Failures []*providers.CallError
}

// Error implements the error interface.
func (e *AllProvidersFailedError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = f.Error()
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Failures), strings.Join(reasons, "; "))
}

// Is implements error matching for errors.Is().
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap returns the per-provider failures for error chain traversal.
func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Providers returns the failed provider names in order.
func (e *AllProvidersFailedError) Providers() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Provider
	}
	return names
}

// ValidatePrompt returns ErrInvalidPrompt for an empty or whitespace-only
// prompt.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrInvalidPrompt
	}
	return nil
}
