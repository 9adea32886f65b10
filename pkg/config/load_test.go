package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
	"polyinfer-hq/polyinfer/pkg/keys"
)

const sixProviders = `
all_intents: [chat, code, summary, creative, analysis]
providers:
  - name: openai
    api_url: https://api.openai.com/v1/chat/completions
    model: gpt-4o-mini
    request_structure: '{"model":"{model}","messages":[{"role":"user","content":"{input}"}]}'
    request_header:
      authorization: Bearer {api_key}
    api_key_from_env: [OPENAI_API_KEY, OPENAI_API_KEY_BACKUP]
    api_key_fallback_strategy: first
    api_key_fallback_count: 2
    intent: [chat, code, summary]
    responsePath: choices[0].message.content
  - name: anthropic
    api_url: https://api.anthropic.com/v1/messages
    model: claude-3-haiku-20240307
    request_structure:
      model: "{model}"
      max_tokens: 1024
      messages:
        - role: user
          content: "{input}"
    request_header:
      x-api-key: "{api_key}"
    api_key_from_env: [ANTHROPIC_API_KEY, ANTHROPIC_API_KEY_BACKUP]
    api_key_fallback_strategy: count
    api_key_fallback_count: 2
    intent: [chat, analysis]
    responsePath: content[0].text
  - name: gemini
    api_url: https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent
    model: gemini-2.5-flash
    request_structure: '{"contents":[{"role":"user","parts":[{"text":"{input}"}]}]}'
    request_header:
      x-goog-api-key: "{api_key}"
    api_key_from_env: [GOOGLE_API_KEY]
    api_key_fallback_strategy: indices
    api_key_fallback_indices: [0]
    intent: [chat, creative]
    responsePath: candidates[0].content.parts[0].text
  - name: grok
    api_url: https://api.x.ai/v1/chat/completions
    model: grok-2-1212
    request_structure: '{"model":"{model}","messages":[{"role":"user","content":"{input}"}],"stream":false}'
    request_header:
      authorization: Bearer {api_key}
    api_key_from_env: [XAI_API_KEY, XAI_API_KEY_2, XAI_API_KEY_3, XAI_API_KEY_4, XAI_API_KEY_5, XAI_API_KEY_6]
    api_key_fallback_strategy: range
    api_key_fallback_range_start: 2
    api_key_fallback_range_end: 4
    intent: [chat, code]
    responsePath: choices[0].message.content
  - name: ollama
    api_url: http://localhost:11434/api/generate
    model: llama2
    request_structure: '{"model":"{model}","prompt":"{input}","stream":false}'
    api_key_from_env: []
    api_key_fallback_strategy: first
    api_key_fallback_count: 2
    intent: chat
    responsePath: response
  - name: mock-provider
    api_url: https://httpbin.org/post
    model: mock-model
    request_structure: '{"prompt":"{input}","model":"{model}"}'
    intent: chat
    response_path: json.response
mode: synchronous
consecutive_success: 3
logging: true
metrics: true
cache:
  enabled: true
  ttl: 300000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polyinfer.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_SixProviders(t *testing.T) {
	cfg, err := Load(writeConfig(t, sixProviders))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if diff := cmp.Diff(
		[]string{"openai", "anthropic", "gemini", "grok", "ollama", "mock-provider"},
		cfg.ProviderNames(),
	); diff != "" {
		t.Errorf("provider order mismatch (-want +got):\n%s", diff)
	}

	if cfg.Mode != ModeSynchronous {
		t.Errorf("expected mode %q, got %q", ModeSynchronous, cfg.Mode)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 300000 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Cache.TTLDuration() != 5*time.Minute {
		t.Errorf("expected TTL of 5m, got %v", cfg.Cache.TTLDuration())
	}

	strategies := map[string]keys.Strategy{
		"openai":        keys.First{},
		"anthropic":     keys.Count{N: 2},
		"gemini":        keys.Indices{Positions: []int{0}},
		"grok":          keys.Range{Start: 2, End: 4},
		"ollama":        keys.First{},
		"mock-provider": keys.First{},
	}
	for name, want := range strategies {
		p, ok := cfg.Provider(name)
		if !ok {
			t.Fatalf("provider %q not found", name)
		}
		if diff := cmp.Diff(want, p.Strategy()); diff != "" {
			t.Errorf("%s strategy mismatch (-want +got):\n%s", name, diff)
		}
		if p.Path().IsZero() {
			t.Errorf("%s response path was not compiled", name)
		}
	}

	ollama, _ := cfg.Provider("ollama")
	if !ollama.Keyless() {
		t.Error("ollama should be keyless")
	}
	if diff := cmp.Diff([]string{"chat"}, ollama.Intent); diff != "" {
		t.Errorf("scalar intent mismatch (-want +got):\n%s", diff)
	}

	mock, _ := cfg.Provider("mock-provider")
	if mock.ResponsePath != "json.response" {
		t.Errorf("response_path alias not honored: %q", mock.ResponsePath)
	}

	anthropic, _ := cfg.Provider("anthropic")
	want := `{"max_tokens":1024,"messages":[{"content":"{input}","role":"user"}],"model":"{model}"}`
	if anthropic.RequestStructure != want {
		t.Errorf("inline request structure = %s, want %s", anthropic.RequestStructure, want)
	}
}

func TestLoad_BundledConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "polyinfer.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Providers) != 5 || !cfg.Cache.Enabled || !cfg.Telemetry.Prometheus.Enabled {
		t.Fatalf("unexpected bundled config: %d providers, cache %t", len(cfg.Providers), cfg.Cache.Enabled)
	}

	grok, ok := cfg.Provider("grok")
	if !ok {
		t.Fatal("grok provider missing")
	}
	if diff := cmp.Diff(keys.Range{Start: 2, End: 4}, grok.Strategy()); diff != "" {
		t.Errorf("grok strategy mismatch (-want +got):\n%s", diff)
	}

	ollama, _ := cfg.Provider("ollama")
	if !ollama.Keyless() || ollama.Timeout != 2*time.Minute {
		t.Errorf("ollama = keyless %t, timeout %s", ollama.Keyless(), ollama.Timeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
providers:
  - name: local
    api_url: http://localhost:11434/api/generate
    request_structure: '{"prompt":"{input}"}'
    responsePath: response
cache:
  enabled: true
`))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Mode != DefaultMode {
		t.Errorf("expected default mode, got %q", cfg.Mode)
	}
	if cfg.ConsecutiveSuccess != DefaultConsecutiveSuccess {
		t.Errorf("expected default consecutive_success, got %d", cfg.ConsecutiveSuccess)
	}
	if !cfg.Metrics {
		t.Error("metrics should default to enabled")
	}
	if cfg.Logging {
		t.Error("logging should default to disabled")
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("expected default ttl %d, got %d", DefaultCacheTTL, cfg.Cache.TTL)
	}
	if cfg.Cache.SweepSchedule != DefaultCacheSweepSchedule {
		t.Errorf("expected default sweep schedule, got %q", cfg.Cache.SweepSchedule)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if !cfg.Telemetry.Logging.RedactKeys {
		t.Error("key redaction should default to enabled")
	}
	if p, _ := cfg.Provider("local"); p.Timeout != DefaultProviderTimeout {
		t.Errorf("expected default provider timeout, got %v", p.Timeout)
	}
}

func TestLoad_ExplicitZeroTTL(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  - name: local
    api_url: http://localhost/api
    request_structure: '{}'
    responsePath: response
cache:
  enabled: true
  ttl: 0
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Cache.TTL != 0 {
		t.Errorf("explicit ttl 0 must be kept, got %d", cfg.Cache.TTL)
	}
}

func TestParse_JSONDocument(t *testing.T) {
	cfg, err := Parse([]byte(`{
  "providers": [{
    "name": "local",
    "api_url": "http://localhost/api",
    "request_structure": "{\"prompt\":\"{input}\"}",
    "api_key_from_env": ["K1", "K2", "K3", "K4", "K5"],
    "api_key_fallback_strategy": "subset",
    "api_key_fallback_subset_count": 3,
    "api_key_fallback_subset_from": 5,
    "responsePath": "response"
  }],
  "mode": "concurrent"
}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Mode != ModeConcurrent {
		t.Errorf("expected concurrent mode, got %q", cfg.Mode)
	}
	p, _ := cfg.Provider("local")
	if diff := cmp.Diff(keys.Subset{Count: 3, From: 5}, p.Strategy()); diff != "" {
		t.Errorf("strategy mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "providers: [")); err == nil {
			t.Fatal("expected error for malformed yaml")
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
providers:
  - name: p
    api_url: http://localhost/api
    request_structure: '{}'
    api_key_from_env: [K]
    api_key_fallback_strategy: roundrobin
    responsePath: response
`))
		if err == nil {
			t.Fatal("expected error for unknown strategy")
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("range past declared keys", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
providers:
  - name: p
    api_url: http://localhost/api
    request_structure: '{}'
    api_key_from_env: [K0, K1, K2]
    api_key_fallback_strategy: range
    api_key_fallback_range_start: 2
    api_key_fallback_range_end: 4
    responsePath: response
`))
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if !verr.Has("providers[0].api_key_fallback_strategy") {
			t.Errorf("expected strategy field error, got %v", verr)
		}
	})
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, sixProviders)

	t.Setenv("POLYINFER_MODE", "CONCURRENT")
	t.Setenv("POLYINFER_CACHE_ENABLED", "false")
	t.Setenv("POLYINFER_CACHE_TTL", "1000")
	t.Setenv("POLYINFER_SERVER_LISTEN_ADDRESS", "0.0.0.0:9000")
	t.Setenv("POLYINFER_LOG_LEVEL", "debug")
	t.Setenv("POLYINFER_METRICS", "not-a-bool")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides() error = %v", err)
	}

	if cfg.Mode != ModeConcurrent {
		t.Errorf("expected mode override, got %q", cfg.Mode)
	}
	if cfg.Cache.Enabled {
		t.Error("expected cache to be disabled by override")
	}
	if cfg.Cache.TTL != 1000 {
		t.Errorf("expected ttl override, got %d", cfg.Cache.TTL)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected listen address override, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected log level override, got %q", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Metrics {
		t.Error("malformed boolean override must be ignored")
	}
}

func TestLoadWithEnvOverrides_InvalidMode(t *testing.T) {
	t.Setenv("POLYINFER_MODE", "sideways")

	if _, err := LoadWithEnvOverrides(writeConfig(t, sixProviders)); err == nil {
		t.Fatal("expected validation error for invalid mode override")
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sixProviders))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	data, err := yaml.Marshal(cfg.Document())
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Document) error = %v\n%s", err, data)
	}

	first, _ := cfg.Fingerprint()
	second, _ := again.Fingerprint()
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("fingerprint changed across round trip (-want +got):\n%s", diff)
	}
}

func TestDocument_NeverContainsResolvedKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-live-secret")

	cfg, err := Parse([]byte(sixProviders))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	data, err := yaml.Marshal(cfg.Document())
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "sk-live-secret") {
		t.Error("document leaked a resolved key value")
	}
	if !strings.Contains(string(data), "OPENAI_API_KEY") {
		t.Error("document should list the key variable names")
	}
}

func TestFingerprint_ChangesWithConfig(t *testing.T) {
	cfg, err := Parse([]byte(sixProviders))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	base, _ := cfg.Fingerprint()
	concurrent, _ := cfg.WithMode(ModeConcurrent).Fingerprint()
	if string(base) == string(concurrent) {
		t.Error("fingerprint must depend on mode")
	}

	same, _ := cfg.Clone().Fingerprint()
	if string(base) != string(same) {
		t.Error("clone must have the same fingerprint")
	}
}

func TestWithMode_DoesNotMutate(t *testing.T) {
	cfg, err := Parse([]byte(sixProviders))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	other := cfg.WithMode(ModeConcurrent)
	if cfg.Mode != ModeSynchronous {
		t.Errorf("original mode changed to %q", cfg.Mode)
	}
	if !other.Prepared() {
		t.Error("copy of a prepared config should stay prepared")
	}
	if p, ok := other.Provider("grok"); !ok || p.Path().String() != "choices[0].message.content" {
		t.Error("copy lost its provider index or compiled paths")
	}
}
