package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"polyinfer-hq/polyinfer/internal/providertest"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, envFile, verbose, format = "polyinfer.yaml", "", false, "text"
	sayFlags.mode = ""
	benchFlags.requests, benchFlags.concurrency, benchFlags.mode, benchFlags.unique = 20, 1, "", false
	validateFlags.checkKeys = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--env-file", ""))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polyinfer.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func stubConfig(url string, extra string) string {
	return `mode: synchronous
metrics: true
cache:
  enabled: false
telemetry:
  logging:
    level: error
providers:
  - name: stub
    api_url: ` + url + `
    model: stub-model
    request_structure: '{"model":"{model}","messages":[{"role":"user","content":"{input}"}]}'
    responsePath: choices[0].message.content
` + extra
}

func TestSayCommand(t *testing.T) {
	stub := providertest.Succeed("Paris")
	defer stub.Close()

	path := writeConfig(t, stubConfig(stub.URL(), ""))

	out, err := execute(t, "say", "-c", path, "capital", "of", "France?")
	if err != nil {
		t.Fatalf("say error = %v", err)
	}
	if out != "Paris\n" {
		t.Errorf("output = %q, want %q", out, "Paris\n")
	}

	reqs := stub.Requests()
	if len(reqs) != 1 || !strings.Contains(reqs[0].Body, "capital of France?") {
		t.Errorf("provider requests = %+v", reqs)
	}
}

func TestSayCommand_JSON(t *testing.T) {
	stub := providertest.Succeed("Paris")
	defer stub.Close()

	path := writeConfig(t, stubConfig(stub.URL(), ""))

	out, err := execute(t, "say", "-c", path, "-o", "json", "--mode", "concurrent", "hi")
	if err != nil {
		t.Fatalf("say error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["provider"] != "stub" || got["mode"] != "concurrent" || got["response"] != "Paris" {
		t.Errorf("output = %v", got)
	}
}

func TestSayCommand_Errors(t *testing.T) {
	stub := providertest.Fail(http.StatusServiceUnavailable)
	defer stub.Close()

	path := writeConfig(t, stubConfig(stub.URL(), ""))

	if _, err := execute(t, "say", "-c", path, "hi"); err == nil || !strings.Contains(err.Error(), "all 1 providers failed") {
		t.Errorf("say error = %v, want provider exhaustion", err)
	}
	if _, err := execute(t, "say", "-c", path, "   "); err == nil {
		t.Error("blank prompt should fail")
	}
	if _, err := execute(t, "say", "-c", path, "--mode", "sideways", "hi"); err == nil {
		t.Error("unknown mode should fail")
	}
	if _, err := execute(t, "say", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "hi"); err == nil {
		t.Error("missing config should fail")
	}
}

func TestDemoCommand(t *testing.T) {
	stub := providertest.Succeed("4")
	defer stub.Close()

	path := writeConfig(t, stubConfig(stub.URL(), ""))

	out, err := execute(t, "demo", "-c", path, "What is 2+2?")
	if err != nil {
		t.Fatalf("demo error = %v", err)
	}
	for _, want := range []string{"Synchronous (stub", "Concurrent (stub", "Metrics:", "stub"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if stub.RequestCount() != 2 {
		t.Errorf("provider requests = %d, want 2", stub.RequestCount())
	}
}

func TestBenchCommand(t *testing.T) {
	stub := providertest.Succeed("pong")
	defer stub.Close()

	path := writeConfig(t, stubConfig(stub.URL(), ""))

	out, err := execute(t, "bench", "-c", path, "-o", "json", "-n", "6", "--concurrency", "3", "ping")
	if err != nil {
		t.Fatalf("bench error = %v", err)
	}

	var got benchReport
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Requests != 6 || got.Succeeded != 6 || got.Failed != 0 {
		t.Errorf("report = %+v", got)
	}
	if got.Winners["stub"] != 6 || got.Metrics["stub"].Count != 6 {
		t.Errorf("winners = %v, metrics = %v", got.Winners, got.Metrics)
	}
}

func TestValidateCommand(t *testing.T) {
	stub := providertest.Succeed("ok")
	defer stub.Close()

	valid := writeConfig(t, stubConfig(stub.URL(), ""))
	out, err := execute(t, "validate", "-c", valid)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "✓ Configuration valid") || !strings.Contains(out, "1. stub (stub-model) keyless") {
		t.Errorf("output = %s", out)
	}

	invalid := writeConfig(t, `mode: sideways
consecutive_success: -1
providers: []
`)
	out, err = execute(t, "validate", "-c", invalid)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, field := range []string{"mode", "consecutive_success", "providers"} {
		if !strings.Contains(out, "  - "+field) {
			t.Errorf("output missing field %q:\n%s", field, out)
		}
	}
}

func TestValidateCommand_CheckKeys(t *testing.T) {
	stub := providertest.Succeed("ok")
	defer stub.Close()

	path := writeConfig(t, stubConfig(stub.URL(), `    api_key_from_env: [POLYINFER_CMD_TEST_UNSET_KEY]
`))

	out, err := execute(t, "validate", "-c", path, "--check-keys")
	if err == nil {
		t.Fatalf("expected missing key failure:\n%s", out)
	}
	if !strings.Contains(out, "no usable key for: stub") {
		t.Errorf("output = %s", out)
	}
}

func TestConfigCommand_NeverPrintsKeys(t *testing.T) {
	stub := providertest.Succeed("ok")
	defer stub.Close()

	secret := "sk-cmd-test-0123456789"
	t.Setenv("POLYINFER_CMD_TEST_KEY", secret)
	path := writeConfig(t, stubConfig(stub.URL(), `    api_key_from_env: [POLYINFER_CMD_TEST_KEY]
`))

	out, err := execute(t, "config", "-c", path)
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if strings.Contains(out, secret) {
		t.Fatal("config output contains a resolved key")
	}
	if !strings.Contains(out, "POLYINFER_CMD_TEST_KEY") || !strings.Contains(out, "api_key_fallback_strategy: first") {
		t.Errorf("output = %s", out)
	}
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.env")
	if err := os.WriteFile(path, []byte("POLYINFER_CMD_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POLYINFER_CMD_TEST_DOTENV", "")
	os.Unsetenv("POLYINFER_CMD_TEST_DOTENV")

	// Earlier commands in this package pass --env-file explicitly.
	flag := rootCmd.PersistentFlags().Lookup("env-file")
	flag.Changed = false
	versionCmd.InheritedFlags()
	t.Cleanup(func() { envFile = "" })

	envFile = path
	if err := loadEnvFile(versionCmd, nil); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}
	if got := os.Getenv("POLYINFER_CMD_TEST_DOTENV"); got != "from-file" {
		t.Errorf("variable = %q, want from-file", got)
	}

	envFile = filepath.Join(dir, "missing.env")
	if err := loadEnvFile(versionCmd, nil); err != nil {
		t.Errorf("missing default env file should be ignored, got %v", err)
	}

	flag.Changed = true
	if err := loadEnvFile(versionCmd, nil); err == nil {
		t.Error("missing explicit env file should fail")
	}
}

func TestSummarize(t *testing.T) {
	var latencies []time.Duration
	for i := 100; i >= 1; i-- {
		latencies = append(latencies, time.Duration(i)*time.Millisecond)
	}

	got := summarize(latencies)
	if got.Min != time.Millisecond || got.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", got.Min, got.Max)
	}
	if got.Median != 51*time.Millisecond || got.P95 != 96*time.Millisecond || got.P99 != 100*time.Millisecond {
		t.Errorf("percentiles = %+v", got)
	}
	if got.Mean != 50500*time.Microsecond {
		t.Errorf("mean = %v", got.Mean)
	}

	if (summarize(nil) != latencySummary{}) {
		t.Error("empty input should give a zero summary")
	}
}
