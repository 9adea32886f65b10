// Package logging configures log/slog for polyinfer.
//
// # Overview
//
// New builds a *slog.Logger from a Config:
//   - JSON or text output at a configurable level
//   - request_id and mode attributes taken from the context
//   - optional redaction of API keys and bearer tokens
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:      "info",
//	    Format:     "json",
//	    RedactKeys: true,
//	})
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "provider answered",
//	    "provider", "openai",
//	    "authorization", "Bearer sk-abc123", // logged as "Bear***"
//	)
//
// # Redaction
//
// Attributes whose name suggests a secret (api_key, authorization, token,
// secret, password) keep only a four character prefix. Every other string
// attribute, including error messages, is scanned for key-like
// substrings:
//
//   - Bearer tokens: Bearer abc.def → Bearer ***
//   - OpenAI and Anthropic keys: sk-abc123xyz789 → sk-***
//   - xAI keys: xai-abc123xyz → xai-***
//   - Google keys: AIzaSy... → AIza***
//   - Query parameters: ?key=abc → ?key=***
package logging
