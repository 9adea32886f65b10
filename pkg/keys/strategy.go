package keys

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Strategy names as they appear in configuration documents.
const (
	StrategyFirst   = "first"
	StrategyAll     = "all"
	StrategyCount   = "count"
	StrategyIndices = "indices"
	StrategyRange   = "range"
	StrategySubset  = "subset"
)

// Strategy decides which of a provider's declared key variables are tried
// for one call and in what order. The concrete types are First, All, Count,
// Indices, Range and Subset; no other implementations exist.
type Strategy interface {
	// Name returns the configuration name of the strategy.
	Name() string

	// Validate checks the strategy parameters against the number of
	// declared key variables.
	Validate(numKeys int) error

	// pick returns the candidate keys in attempt order.
	pick(r *resolver, rng *rand.Rand) []string
}

// First tries only the first non-empty key.
type First struct{}

// All tries every non-empty key in declared order.
type All struct{}

// Count tries the first N non-empty keys.
type Count struct {
	N int
}

// Indices tries the keys declared at the given zero-based positions, in
// the given order.
type Indices struct {
	Positions []int
}

// Range tries the keys declared at positions [Start, End).
type Range struct {
	Start int
	End   int
}

// Subset tries Count keys sampled without replacement from the first From
// non-empty keys.
type Subset struct {
	Count int
	From  int
}

func (First) Name() string   { return StrategyFirst }
func (All) Name() string     { return StrategyAll }
func (Count) Name() string   { return StrategyCount }
func (Indices) Name() string { return StrategyIndices }
func (Range) Name() string   { return StrategyRange }
func (Subset) Name() string  { return StrategySubset }

func (First) Validate(int) error { return nil }
func (All) Validate(int) error   { return nil }

func (s Count) Validate(numKeys int) error {
	if s.N < 1 {
		return fmt.Errorf("count must be at least 1, got %d", s.N)
	}
	if s.N > numKeys {
		return fmt.Errorf("count %d exceeds the %d declared keys", s.N, numKeys)
	}
	return nil
}

func (s Indices) Validate(numKeys int) error {
	if len(s.Positions) == 0 {
		return fmt.Errorf("indices must not be empty")
	}
	seen := make(map[int]bool, len(s.Positions))
	for _, p := range s.Positions {
		if p < 0 || p >= numKeys {
			return fmt.Errorf("index %d out of bounds for %d declared keys", p, numKeys)
		}
		if seen[p] {
			return fmt.Errorf("index %d listed more than once", p)
		}
		seen[p] = true
	}
	return nil
}

func (s Range) Validate(numKeys int) error {
	if s.Start < 0 {
		return fmt.Errorf("range start must be non-negative, got %d", s.Start)
	}
	if s.Start >= s.End {
		return fmt.Errorf("range start %d must be less than end %d", s.Start, s.End)
	}
	if s.End > numKeys {
		return fmt.Errorf("range end %d exceeds the %d declared keys", s.End, numKeys)
	}
	return nil
}

func (s Subset) Validate(numKeys int) error {
	if s.Count < 1 {
		return fmt.Errorf("subset count must be at least 1, got %d", s.Count)
	}
	if s.From < s.Count {
		return fmt.Errorf("subset from %d must be at least subset count %d", s.From, s.Count)
	}
	if s.From > numKeys {
		return fmt.Errorf("subset from %d exceeds the %d declared keys", s.From, numKeys)
	}
	return nil
}

func (First) pick(r *resolver, _ *rand.Rand) []string {
	return r.firstN(1)
}

func (All) pick(r *resolver, _ *rand.Rand) []string {
	return r.firstN(r.len())
}

func (s Count) pick(r *resolver, _ *rand.Rand) []string {
	return r.firstN(s.N)
}

func (s Indices) pick(r *resolver, _ *rand.Rand) []string {
	return r.at(s.Positions)
}

func (s Range) pick(r *resolver, _ *rand.Rand) []string {
	positions := make([]int, 0, s.End-s.Start)
	for i := s.Start; i < s.End; i++ {
		positions = append(positions, i)
	}
	return r.at(positions)
}

func (s Subset) pick(r *resolver, rng *rand.Rand) []string {
	pool := r.firstN(s.From)
	n := min(s.Count, len(pool))
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

// Params carries the flat strategy fields of a configuration document.
// Only the fields relevant to Name are read.
type Params struct {
	Name        string
	Count       int
	Indices     []int
	RangeStart  int
	RangeEnd    int
	SubsetCount int
	SubsetFrom  int
}

// FromParams builds the Strategy named by p.Name. An empty name selects
// First.
func FromParams(p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(p.Name)) {
	case "", StrategyFirst:
		return First{}, nil
	case StrategyAll:
		return All{}, nil
	case StrategyCount:
		return Count{N: p.Count}, nil
	case StrategyIndices:
		positions := make([]int, len(p.Indices))
		copy(positions, p.Indices)
		return Indices{Positions: positions}, nil
	case StrategyRange:
		return Range{Start: p.RangeStart, End: p.RangeEnd}, nil
	case StrategySubset:
		return Subset{Count: p.SubsetCount, From: p.SubsetFrom}, nil
	default:
		return nil, fmt.Errorf("unknown key fallback strategy %q (available: %s)",
			p.Name, strings.Join(Names(), ", "))
	}
}

// ToParams flattens a Strategy back into configuration fields.
func ToParams(s Strategy) Params {
	switch v := s.(type) {
	case Count:
		return Params{Name: v.Name(), Count: v.N}
	case Indices:
		return Params{Name: v.Name(), Indices: v.Positions}
	case Range:
		return Params{Name: v.Name(), RangeStart: v.Start, RangeEnd: v.End}
	case Subset:
		return Params{Name: v.Name(), SubsetCount: v.Count, SubsetFrom: v.From}
	case nil:
		return Params{Name: StrategyFirst}
	default:
		return Params{Name: v.Name()}
	}
}

// Names lists the supported strategy names.
func Names() []string {
	return []string{StrategyFirst, StrategyAll, StrategyCount, StrategyIndices, StrategyRange, StrategySubset}
}
