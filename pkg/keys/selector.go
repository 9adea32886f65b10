// Package keys resolves the API keys tried for a provider call.
//
// A provider declares an ordered list of environment variable names and a
// fallback Strategy. The Selector reads the variables at call time, drops
// unset or empty ones, and returns the candidate keys in attempt order.
package keys

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNoUsableKey is matched by ResolutionExhaustedError via errors.Is.
var ErrNoUsableKey = errors.New("no usable api key")

// ResolutionExhaustedError is returned when a provider that declares key
// variables has none that resolve to a non-empty value under its strategy.
// It is a per-provider failure; the caller moves on to the next provider.
type ResolutionExhaustedError struct {
	// Provider is the provider name.
	Provider string

	// Strategy is the strategy that was applied.
	Strategy string

	// Variables are the declared environment variable names.
	Variables []string
}

// Error implements the error interface.
func (e *ResolutionExhaustedError) Error() string {
	return fmt.Sprintf("provider %q has no usable api key (strategy %s, variables: %s)",
		e.Provider, e.Strategy, strings.Join(e.Variables, ", "))
}

// Is implements error matching for errors.Is().
func (e *ResolutionExhaustedError) Is(target error) bool {
	return target == ErrNoUsableKey
}

// LookupFunc reads one environment variable. It has the signature of
// os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// Selector resolves candidate keys. It is safe for concurrent use.
type Selector struct {
	lookup LookupFunc

	// rng is not safe for concurrent use on its own
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithLookup replaces os.LookupEnv as the variable source.
func WithLookup(lookup LookupFunc) Option {
	return func(s *Selector) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

// WithRand sets the random source used by the subset strategy.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSeed seeds the random source used by the subset strategy.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewSelector creates a Selector reading from the process environment.
func NewSelector(opts ...Option) *Selector {
	seed := uint64(time.Now().UnixNano())
	s := &Selector{
		lookup: os.LookupEnv,
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the keys to try for one call, in order.
//
// A provider without declared variables is keyless: Select returns a
// single empty key so the call proceeds with {api_key} rendered empty.
// A provider whose candidates are all unset or empty yields a
// *ResolutionExhaustedError.
func (s *Selector) Select(provider string, variables []string, strategy Strategy) ([]string, error) {
	if len(variables) == 0 {
		return []string{""}, nil
	}
	if strategy == nil {
		strategy = First{}
	}

	r := &resolver{variables: variables, lookup: s.lookup}

	s.mu.Lock()
	picked := strategy.pick(r, s.rng)
	s.mu.Unlock()

	if len(picked) == 0 {
		return nil, &ResolutionExhaustedError{
			Provider:  provider,
			Strategy:  strategy.Name(),
			Variables: variables,
		}
	}
	return picked, nil
}

// resolver reads variables on demand and memoizes them for one Select.
type resolver struct {
	variables []string
	lookup    LookupFunc
	values    map[int]string
}

func (r *resolver) len() int {
	return len(r.variables)
}

func (r *resolver) value(i int) string {
	if v, ok := r.values[i]; ok {
		return v
	}
	if r.values == nil {
		r.values = make(map[int]string, len(r.variables))
	}
	v, _ := r.lookup(r.variables[i])
	v = strings.TrimSpace(v)
	r.values[i] = v
	return v
}

// firstN returns up to n non-empty values in declared order.
func (r *resolver) firstN(n int) []string {
	var out []string
	for i := 0; i < len(r.variables) && len(out) < n; i++ {
		if v := r.value(i); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// at returns the non-empty values at the given declared positions.
func (r *resolver) at(positions []int) []string {
	var out []string
	for _, p := range positions {
		if p < 0 || p >= len(r.variables) {
			continue
		}
		if v := r.value(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
