package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
	"polyinfer-hq/polyinfer/pkg/extract"
	"polyinfer-hq/polyinfer/pkg/keys"
)

// ProviderConfig describes one backend inference API.
type ProviderConfig struct {
	// Name uniquely identifies the provider.
	Name string

	// APIURL is the endpoint the rendered request is POSTed to.
	APIURL string

	// Model is substituted for {model}.
	Model string

	// RequestStructure is the body template. It should render to JSON.
	RequestStructure string

	// RequestHeader maps header names to value templates.
	RequestHeader map[string]string

	// APIKeyFromEnv lists the environment variables holding API keys, in
	// declared order. Empty means the provider is keyless.
	APIKeyFromEnv []string

	// KeyStrategy picks which keys are tried. Nil means keys.First.
	KeyStrategy keys.Strategy

	// Intent tags the task categories the provider suits. Informational.
	Intent []string

	// ResponsePath locates the answer text in the response body.
	ResponsePath string

	// Timeout bounds one HTTP attempt. Zero inherits DefaultProviderTimeout.
	Timeout time.Duration

	path extract.Path
}

// Path returns the compiled response path.
func (p *ProviderConfig) Path() extract.Path {
	if p.path.IsZero() && p.ResponsePath != "" {
		if parsed, err := extract.Parse(p.ResponsePath); err == nil {
			return parsed
		}
	}
	return p.path
}

// Keyless reports whether the provider declares no key variables.
func (p *ProviderConfig) Keyless() bool {
	return len(p.APIKeyFromEnv) == 0
}

// Strategy returns the key strategy, defaulting to keys.First.
func (p *ProviderConfig) Strategy() keys.Strategy {
	if p.KeyStrategy == nil {
		return keys.First{}
	}
	return p.KeyStrategy
}

func (p ProviderConfig) clone() ProviderConfig {
	out := p
	if p.RequestHeader != nil {
		out.RequestHeader = make(map[string]string, len(p.RequestHeader))
		for k, v := range p.RequestHeader {
			out.RequestHeader[k] = v
		}
	}
	out.APIKeyFromEnv = append([]string(nil), p.APIKeyFromEnv...)
	out.Intent = append([]string(nil), p.Intent...)
	return out
}

// ProviderDocument is the wire shape of a provider entry. Key strategy
// parameters are flat fields; only those relevant to the strategy are set.
type ProviderDocument struct {
	Name             string            `json:"name" yaml:"name"`
	APIURL           string            `json:"api_url" yaml:"api_url"`
	Model            string            `json:"model" yaml:"model"`
	RequestStructure string            `json:"request_structure" yaml:"request_structure"`
	RequestHeader    map[string]string `json:"request_header,omitempty" yaml:"request_header,omitempty"`
	APIKeyFromEnv    []string          `json:"api_key_from_env" yaml:"api_key_from_env"`
	Strategy         string            `json:"api_key_fallback_strategy" yaml:"api_key_fallback_strategy"`
	Count            int               `json:"api_key_fallback_count,omitempty" yaml:"api_key_fallback_count,omitempty"`
	Indices          []int             `json:"api_key_fallback_indices,omitempty" yaml:"api_key_fallback_indices,omitempty"`
	RangeStart       int               `json:"api_key_fallback_range_start,omitempty" yaml:"api_key_fallback_range_start,omitempty"`
	RangeEnd         int               `json:"api_key_fallback_range_end,omitempty" yaml:"api_key_fallback_range_end,omitempty"`
	SubsetCount      int               `json:"api_key_fallback_subset_count,omitempty" yaml:"api_key_fallback_subset_count,omitempty"`
	SubsetFrom       int               `json:"api_key_fallback_subset_from,omitempty" yaml:"api_key_fallback_subset_from,omitempty"`
	Intent           []string          `json:"intent,omitempty" yaml:"intent,omitempty"`
	ResponsePath     string            `json:"responsePath" yaml:"responsePath"`
	Timeout          string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Document returns the wire shape of the provider.
func (p *ProviderConfig) Document() ProviderDocument {
	params := keys.ToParams(p.Strategy())
	doc := ProviderDocument{
		Name:             p.Name,
		APIURL:           p.APIURL,
		Model:            p.Model,
		RequestStructure: p.RequestStructure,
		RequestHeader:    p.RequestHeader,
		APIKeyFromEnv:    append([]string{}, p.APIKeyFromEnv...),
		Strategy:         params.Name,
		Count:            params.Count,
		Indices:          params.Indices,
		RangeStart:       params.RangeStart,
		RangeEnd:         params.RangeEnd,
		SubsetCount:      params.SubsetCount,
		SubsetFrom:       params.SubsetFrom,
		Intent:           p.Intent,
		ResponsePath:     p.ResponsePath,
	}
	if p.Timeout > 0 {
		doc.Timeout = p.Timeout.String()
	}
	return doc
}

// providerWire is what a provider entry decodes into before conversion.
type providerWire struct {
	Name             string            `yaml:"name"`
	APIURL           string            `yaml:"api_url"`
	Model            string            `yaml:"model"`
	RequestStructure yaml.Node         `yaml:"request_structure"`
	RequestHeader    map[string]string `yaml:"request_header"`
	APIKeyFromEnv    []string          `yaml:"api_key_from_env"`
	Strategy         string            `yaml:"api_key_fallback_strategy"`
	Count            int               `yaml:"api_key_fallback_count"`
	Indices          []int             `yaml:"api_key_fallback_indices"`
	RangeStart       int               `yaml:"api_key_fallback_range_start"`
	RangeEnd         int               `yaml:"api_key_fallback_range_end"`
	SubsetCount      int               `yaml:"api_key_fallback_subset_count"`
	SubsetFrom       int               `yaml:"api_key_fallback_subset_from"`
	Intent           stringList        `yaml:"intent"`
	ResponsePath     string            `yaml:"responsePath"`
	ResponsePathAlt  string            `yaml:"response_path"`
	Timeout          time.Duration     `yaml:"timeout"`
}

// UnmarshalYAML decodes the flat wire shape. request_structure may be a
// string or an inline mapping, which is re-encoded as JSON.
func (p *ProviderConfig) UnmarshalYAML(node *yaml.Node) error {
	var w providerWire
	if err := node.Decode(&w); err != nil {
		return err
	}

	body, err := decodeRequestStructure(&w.RequestStructure)
	if err != nil {
		return ValidationError{Errors: []FieldError{{
			Field:   fmt.Sprintf("providers.%s.request_structure", w.Name),
			Message: err.Error(),
		}}}
	}

	strategy, err := keys.FromParams(keys.Params{
		Name:        w.Strategy,
		Count:       w.Count,
		Indices:     w.Indices,
		RangeStart:  w.RangeStart,
		RangeEnd:    w.RangeEnd,
		SubsetCount: w.SubsetCount,
		SubsetFrom:  w.SubsetFrom,
	})
	if err != nil {
		return ValidationError{Errors: []FieldError{{
			Field:   fmt.Sprintf("providers.%s.api_key_fallback_strategy", w.Name),
			Message: err.Error(),
		}}}
	}

	responsePath := w.ResponsePath
	if responsePath == "" {
		responsePath = w.ResponsePathAlt
	}

	*p = ProviderConfig{
		Name:             w.Name,
		APIURL:           w.APIURL,
		Model:            w.Model,
		RequestStructure: body,
		RequestHeader:    w.RequestHeader,
		APIKeyFromEnv:    w.APIKeyFromEnv,
		KeyStrategy:      strategy,
		Intent:           w.Intent,
		ResponsePath:     responsePath,
		Timeout:          w.Timeout,
	}
	return nil
}

// MarshalYAML encodes the provider in its wire shape.
func (p ProviderConfig) MarshalYAML() (any, error) {
	return p.Document(), nil
}

func decodeRequestStructure(node *yaml.Node) (string, error) {
	switch node.Kind {
	case 0:
		return "", nil
	case yaml.ScalarNode:
		return node.Value, nil
	case yaml.MappingNode, yaml.SequenceNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return "", err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode inline request structure as JSON: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("request structure must be a string or a mapping")
	}
}

// stringList accepts either a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Value == "" {
			*s = nil
			return nil
		}
		*s = stringList{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}
