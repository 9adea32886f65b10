package logging

import (
	"errors"
	"log/slog"
	"regexp"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bearer", "Authorization: Bearer abc.def-ghi", "Authorization: Bearer ***"},
		{"openai key", "key sk-proj1234567890 rejected", "key sk-*** rejected"},
		{"anthropic key", "sk-ant-api03abcdefgh", "sk-***"},
		{"xai key", "xai-abcdefgh1234", "xai-***"},
		{"google key", "AIzaSyA1234567890abcdefghij", "AIza***"},
		{"query param", "https://x.test/v1?key=secret123&alt=json", "https://x.test/v1?key=***&alt=json"},
		{"plain text", "all providers failed", "all providers failed"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_ExtraPatterns(t *testing.T) {
	r := NewRedactor(regexp.MustCompile(`internal-[0-9]+`))
	if got := r.RedactString("id internal-42"); got != "id ***" {
		t.Errorf("RedactString() = %q", got)
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"sensitive key", slog.String("api_key", "abcdefghijkl"), "abcd***"},
		{"short sensitive value", slog.String("token", "abc"), "***"},
		{"error value", slog.Any("error", errors.New("bad key sk-abcdefghijkl")), "bad key sk-***"},
		{"env var names are not secrets", slog.String("api_key_from_env", "OPENAI_API_KEY"), "OPENAI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactAttr(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("RedactAttr() = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}

	t.Run("groups are walked", func(t *testing.T) {
		got := r.RedactAttr(slog.Group("request", slog.String("authorization", "Bearer abcdefgh")))
		inner := got.Value.Group()
		if len(inner) != 1 || inner[0].Value.String() != "Bear***" {
			t.Errorf("group not redacted: %v", got)
		}
	})
}

func TestRedactAPIKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"short", "***"},
		{"sk-1234567890", "sk-1***"},
	}
	for _, tt := range tests {
		if got := RedactAPIKey(tt.in); got != tt.want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
