// Package template renders provider request templates.
//
// A provider declares its request body and headers as plain strings that
// contain placeholder tokens. Rendering is a literal substring substitution
// of the three known tokens; anything else in the template, including
// unknown {tokens}, is copied verbatim.
//
// The prompt is substituted without escaping. A prompt that contains
// characters significant to the body's encoding (for example a double quote
// inside a JSON string) produces a body the provider may reject. RenderJSON
// can optionally repair such bodies.
package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Placeholder tokens recognized by Render.
const (
	TokenModel  = "{model}"
	TokenInput  = "{input}"
	TokenAPIKey = "{api_key}"
)

// Vars holds the values substituted into a template.
type Vars struct {
	// Model replaces {model}.
	Model string

	// Input replaces {input}.
	Input string

	// APIKey replaces {api_key}. Empty for keyless providers.
	APIKey string
}

// Render substitutes {model}, {input} and {api_key} in tmpl.
// Tokens are replaced in a single left-to-right pass, so a prompt that
// itself contains "{api_key}" is never expanded a second time.
func Render(tmpl string, vars Vars) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	r := strings.NewReplacer(
		TokenModel, vars.Model,
		TokenInput, vars.Input,
		TokenAPIKey, vars.APIKey,
	)
	return r.Replace(tmpl)
}

// RenderHeaders renders every header value template independently.
// Without an API key, headers whose template references {api_key} are
// omitted rather than sent half-filled. The returned map is a new map; the
// input is not modified.
func RenderHeaders(headers map[string]string, vars Vars) map[string]string {
	out := make(map[string]string, len(headers))
	for name, tmpl := range headers {
		if vars.APIKey == "" && strings.Contains(tmpl, TokenAPIKey) {
			continue
		}
		out[name] = Render(tmpl, vars)
	}
	return out
}

// RenderJSON renders a body template that is expected to be JSON.
// When repair is false the rendered string is returned as-is, matching
// Render. When repair is true and the rendered body is not valid JSON,
// the body is passed through jsonrepair; an unrepairable body returns an
// error.
func RenderJSON(tmpl string, vars Vars, repair bool) (string, error) {
	body := Render(tmpl, vars)
	if !repair || json.Valid([]byte(body)) {
		return body, nil
	}

	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return "", fmt.Errorf("rendered body is not valid JSON and could not be repaired: %w", err)
	}
	return repaired, nil
}
