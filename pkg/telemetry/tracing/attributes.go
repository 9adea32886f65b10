package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on polyinfer spans.
const (
	AttrMode       = "polyinfer.mode"
	AttrProvider   = "polyinfer.provider"
	AttrModel      = "polyinfer.model"
	AttrKeyIndex   = "polyinfer.key_index"
	AttrKeyCount   = "polyinfer.key_count"
	AttrCacheHit   = "polyinfer.cache.hit"
	AttrStage      = "polyinfer.error.stage"
	AttrStatusCode = "http.response.status_code"
	AttrWinner     = "polyinfer.winner"
	AttrCancelled  = "polyinfer.cancelled"
)

// ProviderAttributes returns the attributes identifying a provider.
func ProviderAttributes(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	}
}
