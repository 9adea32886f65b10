// Package config provides configuration management for polyinfer.
//
// A configuration document lists the providers in priority order together
// with the orchestration settings (mode, promotion threshold, cache and
// metrics switches). Documents are YAML; JSON documents parse as well.
//
// # Configuration Loading
//
//	cfg, err := config.Load("polyinfer.yaml")
//	cfg, err := config.LoadWithEnvOverrides("polyinfer.yaml")
//	cfg, err := config.Parse(data)
//
// Configurations built in code must be prepared before use:
//
//	cfg := &config.Config{Providers: providers}
//	if err := cfg.Prepare(); err != nil {
//	    return err
//	}
//
// # Provider Entries
//
// Provider entries use the flat wire shape shared by every front end:
//
//	- name: grok
//	  api_url: https://api.x.ai/v1/chat/completions
//	  model: grok-2-1212
//	  request_structure: '{"model":"{model}","messages":[{"role":"user","content":"{input}"}]}'
//	  request_header:
//	    authorization: Bearer {api_key}
//	  api_key_from_env: [XAI_API_KEY, XAI_API_KEY_2, XAI_API_KEY_3, XAI_API_KEY_4]
//	  api_key_fallback_strategy: range
//	  api_key_fallback_range_start: 2
//	  api_key_fallback_range_end: 4
//	  intent: [chat, code]
//	  responsePath: choices[0].message.content
//
// The flat strategy fields are converted into a keys.Strategy and checked
// against the number of declared variables at load time.
//
// # Environment Variable Overrides
//
//   - POLYINFER_MODE overrides mode
//   - POLYINFER_CONSECUTIVE_SUCCESS overrides consecutive_success
//   - POLYINFER_LOGGING and POLYINFER_METRICS override logging and metrics
//   - POLYINFER_CACHE_ENABLED and POLYINFER_CACHE_TTL override the cache section
//   - POLYINFER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - POLYINFER_LOG_LEVEL and POLYINFER_LOG_FORMAT override telemetry.logging
//
// # Hot Reload
//
// Watcher observes a configuration file and delivers every valid new
// Config to a callback. The running orchestrator is re-initialized with the
// whole new configuration; a live Config is never modified.
package config
