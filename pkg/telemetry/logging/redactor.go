package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks API keys and bearer tokens in log attributes.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in key patterns plus any
// extra patterns, each replaced by "***".
func NewRedactor(extra ...*regexp.Regexp) *Redactor {
	r := &Redactor{
		patterns: []redactPattern{
			// Bearer tokens
			{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
			// OpenAI and Anthropic style keys
			{regexp.MustCompile(`sk-(?:ant-)?[a-zA-Z0-9_\-]{8,}`), "sk-***"},
			// xAI keys
			{regexp.MustCompile(`xai-[a-zA-Z0-9]{8,}`), "xai-***"},
			// Google API keys
			{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{20,}`), "AIza***"},
			// key=value pairs in URLs and messages
			{regexp.MustCompile(`((?:api[-_]?key|key|token)=)[^&\s"]+`), "${1}***"},
		},
	}
	for _, re := range extra {
		r.patterns = append(r.patterns, redactPattern{regex: re, replacement: "***"})
	}
	return r
}

// RedactString masks key-like substrings of value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr masks the value of a sensitive attribute entirely and scrubs
// key-like substrings from other string values. Groups are walked.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, RedactAPIKey(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// isSensitiveKey checks if an attribute name indicates a secret.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	if lowerKey == "key_index" || lowerKey == "api_key_from_env" {
		return false
	}
	for _, sensitive := range []string{"api_key", "apikey", "authorization", "secret", "token", "password"} {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "***"
}
