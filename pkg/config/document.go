package config

import "encoding/json"

// Document is the wire shape of a configuration: the form it is written
// in, and the form the CLI and the HTTP server display. It only carries
// the names of key variables, never resolved values, so it is safe to
// expose.
type Document struct {
	AllIntents         []string           `json:"all_intents,omitempty" yaml:"all_intents,omitempty"`
	Providers          []ProviderDocument `json:"providers" yaml:"providers"`
	Mode               Mode               `json:"mode" yaml:"mode"`
	ConsecutiveSuccess int                `json:"consecutive_success" yaml:"consecutive_success"`
	Logging            bool               `json:"logging" yaml:"logging"`
	Metrics            bool               `json:"metrics" yaml:"metrics"`
	Cache              CacheDocument      `json:"cache" yaml:"cache"`
	RepairBody         bool               `json:"repair_body,omitempty" yaml:"repair_body,omitempty"`
}

// CacheDocument is the wire shape of the cache section.
type CacheDocument struct {
	Enabled bool  `json:"enabled" yaml:"enabled"`
	TTL     int64 `json:"ttl" yaml:"ttl"`
}

// Document returns the wire shape of the configuration. Server and
// telemetry sections are omitted; they do not affect call results.
func (c *Config) Document() Document {
	providers := make([]ProviderDocument, len(c.Providers))
	for i := range c.Providers {
		providers[i] = c.Providers[i].Document()
	}
	return Document{
		AllIntents:         c.AllIntents,
		Providers:          providers,
		Mode:               c.Mode,
		ConsecutiveSuccess: c.ConsecutiveSuccess,
		Logging:            c.Logging,
		Metrics:            c.Metrics,
		Cache: CacheDocument{
			Enabled: c.Cache.Enabled,
			TTL:     c.Cache.TTL,
		},
		RepairBody: c.RepairBody,
	}
}

// Fingerprint returns a canonical encoding of everything that can change
// the result of a call. Equal fingerprints mean equivalent configurations.
func (c *Config) Fingerprint() ([]byte, error) {
	return json.Marshal(c.Document())
}
