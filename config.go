// Package modelrouter is a provider-agnostic AI routing library. It accepts
// chat, embedding, image, speech, and transcription requests phrased in a
// neutral vocabulary, selects a model from a merged catalog by scoring
// candidates against capability, parameter, budget, and weight constraints,
// and dispatches to the owning provider with multi-level fallback and full
// usage and cost accounting.
//
// The entry point is New, which builds a Router from a Config.
package modelrouter

import (
	"context"
	"time"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
	"github.com/ferro-labs/model-router/registry"
	"github.com/ferro-labs/model-router/tokens"
)

// Config assembles a Router. Every field is optional; the zero value yields
// a router with an empty catalog.
type Config struct {
	// Providers are bound to the registry in order.
	Providers []providers.Provider

	// Models are registered into the catalog at construction, before any
	// refresh runs.
	Models []models.ModelInfo

	// Overrides patch matching models at registration time.
	Overrides []models.Override

	// Handlers intercept dispatch for specific models.
	Handlers []*registry.ModelHandler

	// Sources enrich provider listings during Refresh.
	Sources []registry.ModelSource

	// WeightProfiles are named scoring presets selectable per request via
	// metadata.
	WeightProfiles map[string]models.Weights

	// DefaultWeights apply when a request names neither weights nor a
	// profile.
	DefaultWeights *models.Weights

	// DefaultPricePerMTokens prices refreshed models whose listing carries
	// no pricing (input rate; output is twice this).
	DefaultPricePerMTokens float64

	// DefaultContext seeds every request's context values.
	DefaultContext map[string]any

	// DefaultMetadata seeds every request's selection metadata.
	DefaultMetadata *models.Metadata

	// ProvideContext, when set, is called with the merged
	// default-plus-required context values and may return replacements or
	// additions. It runs before the caller's values take final precedence.
	ProvideContext func(ctx context.Context, values map[string]any) (map[string]any, error)

	// ProvideMetadata, when set, contributes metadata between the defaults
	// and the caller's, merged under the field-specific rules.
	ProvideMetadata func(ctx context.Context, md models.Metadata) (models.Metadata, error)

	// Hooks are the lifecycle callbacks.
	Hooks Hooks

	// TokenDivisors tune the estimator. Zero-valued modalities use the
	// defaults.
	TokenDivisors tokens.Divisors

	// UsageLog enables the SQL accounting log.
	UsageLog *UsageLogConfig

	// Breaker enables per-provider circuit breaking: a provider that keeps
	// returning provider errors is excluded from selection until its
	// cooldown elapses. Explicitly pinned model ids bypass the breaker.
	Breaker *BreakerConfig

	// ChatCache enables in-memory caching of non-streaming chat responses,
	// keyed by request content.
	ChatCache *ChatCacheConfig
}

// BreakerConfig tunes the per-provider circuit breaker. Zero fields fall
// back to 5 failures, 1 success, and a 30s cooldown.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

// ChatCacheConfig sizes the chat response cache. Zero fields fall back to
// 256 entries and a 5m TTL.
type ChatCacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// UsageLogConfig selects the accounting log backend.
type UsageLogConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver" yaml:"driver"`
	// DSN is the database connection string. For sqlite an empty DSN uses a
	// file in the working directory.
	DSN string `json:"dsn" yaml:"dsn"`
}
