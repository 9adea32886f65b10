// Package providertest provides stub provider endpoints for tests.
package providertest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"polyinfer-hq/polyinfer/pkg/config"
)

// Response defines a stub response.
type Response struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string
}

// Recorded is one request received by a Server.
type Recorded struct {
	Header http.Header
	Body   string
}

// Server is a stub provider endpoint. Responses are taken from the queue
// first, then from per-key responses, then from the default response.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	fallback  Response
	queue     []Response
	byKey     map[string]Response
	requests  []Recorded
	completed int
}

// NewServer starts a server that answers every request with resp.
func NewServer(resp Response) *Server {
	s := &Server{
		fallback: resp,
		byKey:    make(map[string]Response),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Succeed starts a server answering 200 with an OpenAI-shaped body.
func Succeed(text string) *Server {
	return NewServer(Response{StatusCode: http.StatusOK, Body: ChatBody(text)})
}

// SucceedAfter is Succeed with a response delay.
func SucceedAfter(text string, delay time.Duration) *Server {
	return NewServer(Response{StatusCode: http.StatusOK, Body: ChatBody(text), Delay: delay})
}

// Fail starts a server answering every request with status.
func Fail(status int) *Server {
	return NewServer(Response{StatusCode: status, Body: map[string]any{"error": http.StatusText(status)}})
}

// ChatBody returns {"choices":[{"message":{"content":text}}]}.
func ChatBody(text string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": text}},
		},
	}
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close closes the server.
func (s *Server) Close() {
	s.server.Close()
}

// SetResponse replaces the default response.
func (s *Server) SetResponse(resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = resp
}

// Enqueue adds one-shot responses served before anything else.
func (s *Server) Enqueue(resps ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, resps...)
}

// SetKeyResponse answers requests whose Authorization header carries key.
func (s *Server) SetKeyResponse(key string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key] = resp
}

// Requests returns a copy of the received requests.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Completed returns the number of responses fully written.
func (s *Server) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Recorded{Header: r.Header.Clone(), Body: string(body)})
	resp := s.fallback
	if len(s.queue) > 0 {
		resp = s.queue[0]
		s.queue = s.queue[1:]
	} else if key := bearer(r.Header.Get("Authorization")); key != "" {
		if keyed, ok := s.byKey[key]; ok {
			resp = keyed
		}
	}
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(resp.Delay):
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := resp.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, v)
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}

	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}

func bearer(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Provider returns an OpenAI-shaped provider configuration pointing at
// url. With no key variables the provider is keyless.
func Provider(name, url string, keyVars ...string) config.ProviderConfig {
	p := config.ProviderConfig{
		Name:             name,
		APIURL:           url,
		Model:            name + "-model",
		RequestStructure: `{"model":"{model}","messages":[{"role":"user","content":"{input}"}]}`,
		APIKeyFromEnv:    keyVars,
		ResponsePath:     "choices[0].message.content",
	}
	if len(keyVars) > 0 {
		p.RequestHeader = map[string]string{"Authorization": "Bearer {api_key}"}
	}
	return p
}

// Config builds a prepared configuration with metrics on and the cache
// off. It panics if the configuration is invalid.
func Config(mode config.Mode, providers ...config.ProviderConfig) *config.Config {
	cfg := &config.Config{
		Providers: providers,
		Mode:      mode,
		Metrics:   true,
	}
	if err := cfg.Prepare(); err != nil {
		panic(err)
	}
	return cfg
}
