// Package extract pulls the answer text out of a decoded provider response.
//
// A response path is a dot-separated list of field names, each optionally
// followed by one or more [n] index suffixes:
//
//	choices[0].message.content
//	candidates[0].content.parts[0].text
//	response
//
// Paths are parsed once into a sequence of typed steps and then evaluated
// against bodies decoded with encoding/json into interface values.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrExtraction is matched by every *Error via errors.Is.
var ErrExtraction = errors.New("response extraction failed")

// StepKind distinguishes field access from index access.
type StepKind int

const (
	// StepField selects a key from a JSON object.
	StepField StepKind = iota
	// StepIndex selects an element from a JSON array.
	StepIndex
)

// Step is a single field or index access.
type Step struct {
	Kind  StepKind
	Field string
	Index int
}

// String renders the step the way it appears in a path expression.
func (s Step) String() string {
	if s.Kind == StepIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Field
}

// Path is a parsed response path.
type Path struct {
	expr  string
	steps []Step
}

// Error is returned when a path cannot be parsed or resolved.
type Error struct {
	// Path is the full path expression.
	Path string

	// Step is the zero-based step that failed (-1 for parse errors).
	Step int

	// Reason describes the failure.
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("invalid response path %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("response path %q failed at step %d: %s", e.Path, e.Step, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *Error) Is(target error) bool {
	return target == ErrExtraction
}

// Parse parses a path expression.
func Parse(expr string) (Path, error) {
	if strings.TrimSpace(expr) == "" {
		return Path{}, &Error{Path: expr, Step: -1, Reason: "path is empty"}
	}

	var steps []Step
	for _, segment := range strings.Split(expr, ".") {
		parsed, err := parseSegment(segment)
		if err != nil {
			return Path{}, &Error{Path: expr, Step: -1, Reason: err.Error()}
		}
		steps = append(steps, parsed...)
	}

	return Path{expr: expr, steps: steps}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// parseSegment parses "name", "name[0]", "name[0][1]" or "[0]".
func parseSegment(segment string) ([]Step, error) {
	if segment == "" {
		return nil, errors.New("empty segment")
	}

	var steps []Step
	name := segment
	if open := strings.IndexByte(segment, '['); open >= 0 {
		name = segment[:open]
		rest := segment[open:]
		if name != "" {
			steps = append(steps, Step{Kind: StepField, Field: name})
		}
		for rest != "" {
			if rest[0] != '[' {
				return nil, fmt.Errorf("unexpected %q after index in segment %q", rest, segment)
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed index in segment %q", segment)
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("index %q is not a non-negative integer", rest[1:end])
			}
			steps = append(steps, Step{Kind: StepIndex, Index: idx})
			rest = rest[end+1:]
		}
		return steps, nil
	}

	if strings.ContainsRune(name, ']') {
		return nil, fmt.Errorf("unexpected ']' in segment %q", segment)
	}
	return []Step{{Kind: StepField, Field: name}}, nil
}

// String returns the original path expression.
func (p Path) String() string {
	return p.expr
}

// Steps returns a copy of the parsed steps.
func (p Path) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// IsZero reports whether the path was never parsed.
func (p Path) IsZero() bool {
	return len(p.steps) == 0
}

// Extract walks body along the path and returns the terminal string.
func (p Path) Extract(body any) (string, error) {
	if p.IsZero() {
		return "", &Error{Path: p.expr, Step: -1, Reason: "path is empty"}
	}

	current := body
	for i, step := range p.steps {
		switch step.Kind {
		case StepField:
			obj, ok := current.(map[string]any)
			if !ok {
				return "", &Error{Path: p.expr, Step: i, Reason: fmt.Sprintf("cannot access field %q on %s", step.Field, describe(current))}
			}
			next, ok := obj[step.Field]
			if !ok {
				return "", &Error{Path: p.expr, Step: i, Reason: fmt.Sprintf("field %q not found", step.Field)}
			}
			current = next

		case StepIndex:
			arr, ok := current.([]any)
			if !ok {
				return "", &Error{Path: p.expr, Step: i, Reason: fmt.Sprintf("cannot index %s", describe(current))}
			}
			if step.Index >= len(arr) {
				return "", &Error{Path: p.expr, Step: i, Reason: fmt.Sprintf("index %d out of range (length %d)", step.Index, len(arr))}
			}
			current = arr[step.Index]
		}
	}

	text, ok := current.(string)
	if !ok {
		return "", &Error{Path: p.expr, Step: len(p.steps) - 1, Reason: fmt.Sprintf("terminal value is %s, not a string", describe(current))}
	}
	return text, nil
}

// Extract parses expr and extracts it from body in one call.
func Extract(body any, expr string) (string, error) {
	p, err := Parse(expr)
	if err != nil {
		return "", err
	}
	return p.Extract(body)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64, int, int64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
