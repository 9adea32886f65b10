package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/orchestrator"
)

// AvailableEndpoints is listed in 404 responses.
var AvailableEndpoints = []string{
	"POST /say - Make AI request",
	"POST /demo - Run both modes back to back",
	"GET /metrics - Get performance metrics",
	"POST /reset-metrics - Reset metrics",
	"POST /clear-cache - Clear response cache",
	"GET /config - Get current configuration",
	"GET /health - Health check",
}

// PromptRequest is the body of /say and /demo.
type PromptRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode,omitempty"`
}

// SayResponse is the body of a successful /say.
type SayResponse struct {
	Success     bool   `json:"success"`
	Prompt      string `json:"prompt"`
	Response    string `json:"response"`
	RawResponse any    `json:"raw_response"`
	Mode        string `json:"mode"`
	Provider    string `json:"provider"`
	Cached      bool   `json:"cached"`
	ElapsedMs   int64  `json:"elapsed_ms"`
}

// DemoResult is one mode's outcome in a /demo response.
type DemoResult struct {
	Response    string `json:"response"`
	RawResponse any    `json:"raw_response"`
	Provider    string `json:"provider"`
	Cached      bool   `json:"cached"`
}

// DemoResponse is the body of a successful /demo.
type DemoResponse struct {
	Success bool                     `json:"success"`
	Prompt  string                   `json:"prompt"`
	Results map[string]DemoResult    `json:"results"`
	Metrics map[string]MetricPayload `json:"metrics"`
}

// MetricPayload is one provider entry of /metrics.
type MetricPayload struct {
	metrics.ProviderMetric
	SuccessRate float64 `json:"success_rate"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success            bool              `json:"success"`
	Error              string            `json:"error"`
	Failures           []ProviderFailure `json:"failures,omitempty"`
	AvailableEndpoints []string          `json:"availableEndpoints,omitempty"`
}

// ProviderFailure describes why one provider failed.
type ProviderFailure struct {
	Provider   string `json:"provider"`
	Stage      string `json:"stage"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error"`
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePrompt(w, r)
	if !ok {
		return
	}

	var opts []orchestrator.SayOption
	mode := s.orch.Config().Mode
	if req.Mode != "" {
		m, err := config.ParseMode(req.Mode)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		mode = m
		opts = append(opts, orchestrator.WithMode(m))
	}

	res, err := s.orch.Say(r.Context(), req.Prompt, opts...)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, SayResponse{
		Success:     true,
		Prompt:      req.Prompt,
		Response:    res.Text,
		RawResponse: res.RawResponse,
		Mode:        string(mode),
		Provider:    res.Provider,
		Cached:      res.Cached,
		ElapsedMs:   res.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePrompt(w, r)
	if !ok {
		return
	}

	report, err := s.orch.Demo(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, DemoResponse{
		Success: true,
		Prompt:  report.Prompt,
		Results: map[string]DemoResult{
			string(config.ModeSynchronous): demoResult(report.Synchronous),
			string(config.ModeConcurrent):  demoResult(report.Concurrent),
		},
		Metrics: metricPayloads(report.Metrics),
	})
}

func demoResult(res *orchestrator.Result) DemoResult {
	return DemoResult{
		Response:    res.Text,
		RawResponse: res.RawResponse,
		Provider:    res.Provider,
		Cached:      res.Cached,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"metrics":   metricPayloads(s.orch.Metrics()),
		"timestamp": timestamp(),
	})
}

func metricPayloads(snapshot map[string]metrics.ProviderMetric) map[string]MetricPayload {
	out := make(map[string]MetricPayload, len(snapshot))
	for name, m := range snapshot {
		out[name] = MetricPayload{ProviderMetric: m, SuccessRate: m.SuccessRate()}
	}
	return out
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	s.orch.ResetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Metrics reset successfully",
		"timestamp": timestamp(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.orch.ClearCache()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Cache cleared successfully",
		"timestamp": timestamp(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  s.orch.Config().Document(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "healthy",
		"timestamp": timestamp(),
		"version":   s.version,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Success:            false,
		Error:              "Endpoint not found",
		AvailableEndpoints: AvailableEndpoints,
	})
}

// decodePrompt reads a PromptRequest and writes a 400 when the body is
// malformed or the prompt is blank.
func (s *Server) decodePrompt(w http.ResponseWriter, r *http.Request) (PromptRequest, bool) {
	var req PromptRequest

	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return req, false
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return req, false
	}

	if err := orchestrator.ValidatePrompt(req.Prompt); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Error: "Prompt is required"})
		return req, false
	}
	return req, true
}

// statusFor maps an orchestrator error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := ErrorResponse{Success: false, Error: err.Error()}

	var all *orchestrator.AllProvidersFailedError
	if errors.As(err, &all) {
		resp.Error = fmt.Sprintf("all %d providers failed", len(all.Failures))
		for _, f := range all.Failures {
			reason := f.Error()
			if f.Cause != nil {
				reason = f.Cause.Error()
			}
			resp.Failures = append(resp.Failures, ProviderFailure{
				Provider:   f.Provider,
				Stage:      string(f.Stage),
				StatusCode: f.StatusCode,
				Error:      reason,
			})
		}
	}

	if status >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
