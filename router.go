package modelrouter

import (
	"context"
	"fmt"

	"github.com/ferro-labs/model-router/internal/cache"
	"github.com/ferro-labs/model-router/internal/circuitbreaker"
	"github.com/ferro-labs/model-router/internal/requestlog"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
	"github.com/ferro-labs/model-router/registry"
	"github.com/ferro-labs/model-router/tokens"
)

// Router is the library facade: it owns the catalog, the estimator, the
// lifecycle hooks, and the accounting sinks, and exposes one method per
// operation family. A Router is safe for concurrent use.
type Router struct {
	cfg Config

	registry  *registry.Registry
	estimator *tokens.Estimator
	hooks     Hooks

	defaultContext  map[string]any
	defaultMetadata *models.Metadata
	provideContext  func(ctx context.Context, values map[string]any) (map[string]any, error)
	provideMetadata func(ctx context.Context, md models.Metadata) (models.Metadata, error)

	stats     *statsAggregator
	usageLog  requestlog.Writer
	breakers  *circuitbreaker.Set
	chatCache *cache.Chat
}

// New builds a Router from cfg. Providers are bound in order; models,
// handlers, and sources are registered before the router is returned. No
// refresh runs at construction.
func New(cfg Config) (*Router, error) {
	reg, err := registry.New(registry.Config{
		Overrides:              cfg.Overrides,
		WeightProfiles:         cfg.WeightProfiles,
		DefaultWeights:         cfg.DefaultWeights,
		DefaultPricePerMTokens: cfg.DefaultPricePerMTokens,
	})
	if err != nil {
		return nil, newError(KindRegistryError, "new", "registry construction failed", err)
	}

	defaultMetadata := cfg.DefaultMetadata
	for _, p := range cfg.Providers {
		reg.RegisterProvider(p)
		if d, ok := p.(providers.MetadataDefaulter); ok {
			md := d.DefaultMetadata()
			if defaultMetadata == nil {
				cp := md
				defaultMetadata = &cp
			} else {
				merged := models.MergeMetadata(md, *defaultMetadata)
				defaultMetadata = &merged
			}
		}
	}
	if err := reg.RegisterAll(cfg.Models); err != nil {
		return nil, newError(KindRegistryError, "new", "model registration failed", err)
	}
	for _, h := range cfg.Handlers {
		reg.RegisterHandler(h)
	}
	for _, s := range cfg.Sources {
		reg.RegisterSource(s)
	}

	var usageLog requestlog.Writer
	if cfg.UsageLog != nil {
		switch cfg.UsageLog.Driver {
		case "", "sqlite":
			usageLog, err = requestlog.NewSQLiteWriter(cfg.UsageLog.DSN)
		case "postgres":
			usageLog, err = requestlog.NewPostgresWriter(cfg.UsageLog.DSN)
		default:
			err = fmt.Errorf("unknown usage log driver %q", cfg.UsageLog.Driver)
		}
		if err != nil {
			return nil, newError(KindRegistryError, "new", "usage log initialization failed", err)
		}
	}

	var breakers *circuitbreaker.Set
	if cfg.Breaker != nil {
		breakers = circuitbreaker.NewSet(cfg.Breaker.FailureThreshold, cfg.Breaker.SuccessThreshold, cfg.Breaker.Cooldown)
	}
	var chatCache *cache.Chat
	if cfg.ChatCache != nil {
		chatCache = cache.NewChat(cfg.ChatCache.Capacity, cfg.ChatCache.TTL)
	}

	return &Router{
		cfg:             cfg,
		registry:        reg,
		estimator:       tokens.New(cfg.TokenDivisors),
		hooks:           cfg.Hooks,
		defaultContext:  cfg.DefaultContext,
		defaultMetadata: defaultMetadata,
		provideContext:  cfg.ProvideContext,
		provideMetadata: cfg.ProvideMetadata,
		stats:           &statsAggregator{},
		usageLog:        usageLog,
		breakers:        breakers,
		chatCache:       chatCache,
	}, nil
}

// Extend derives a child router that inherits this router's configuration
// with cfg layered on top: providers, models, overrides, handlers, and
// sources concatenate; context values and metadata merge with the child
// winning; hooks replace field by field. The child has its own catalog and
// counters.
func (r *Router) Extend(cfg Config) (*Router, error) {
	parent := r.cfg

	merged := Config{
		Providers: append(append([]providers.Provider{}, parent.Providers...), cfg.Providers...),
		Models:    append(append([]models.ModelInfo{}, parent.Models...), cfg.Models...),
		Overrides: append(append([]models.Override{}, parent.Overrides...), cfg.Overrides...),
		Handlers:  append(append([]*registry.ModelHandler{}, parent.Handlers...), cfg.Handlers...),
		Sources:   append(append([]registry.ModelSource{}, parent.Sources...), cfg.Sources...),

		WeightProfiles:         mergeProfiles(parent.WeightProfiles, cfg.WeightProfiles),
		DefaultWeights:         parent.DefaultWeights,
		DefaultPricePerMTokens: parent.DefaultPricePerMTokens,

		DefaultContext:  mergeValues(parent.DefaultContext, cfg.DefaultContext),
		DefaultMetadata: parent.DefaultMetadata,

		ProvideContext:  parent.ProvideContext,
		ProvideMetadata: parent.ProvideMetadata,

		Hooks:         parent.Hooks.merge(cfg.Hooks),
		TokenDivisors: mergeDivisors(parent.TokenDivisors, cfg.TokenDivisors),
		UsageLog:      parent.UsageLog,
		Breaker:       parent.Breaker,
		ChatCache:     parent.ChatCache,
	}
	if cfg.DefaultWeights != nil {
		merged.DefaultWeights = cfg.DefaultWeights
	}
	if cfg.DefaultPricePerMTokens > 0 {
		merged.DefaultPricePerMTokens = cfg.DefaultPricePerMTokens
	}
	if cfg.DefaultMetadata != nil {
		if parent.DefaultMetadata != nil {
			md := models.MergeMetadata(*parent.DefaultMetadata, *cfg.DefaultMetadata)
			merged.DefaultMetadata = &md
		} else {
			merged.DefaultMetadata = cfg.DefaultMetadata
		}
	}
	if cfg.ProvideContext != nil {
		merged.ProvideContext = cfg.ProvideContext
	}
	if cfg.ProvideMetadata != nil {
		merged.ProvideMetadata = cfg.ProvideMetadata
	}
	if cfg.UsageLog != nil {
		merged.UsageLog = cfg.UsageLog
	}
	if cfg.Breaker != nil {
		merged.Breaker = cfg.Breaker
	}
	if cfg.ChatCache != nil {
		merged.ChatCache = cfg.ChatCache
	}

	return New(merged)
}

func mergeProfiles(base, over map[string]models.Weights) map[string]models.Weights {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]models.Weights, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func mergeValues(base, over map[string]any) map[string]any {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func mergeDivisors(base, over tokens.Divisors) tokens.Divisors {
	out := base
	if over.Text != (tokens.ModalityDivisors{}) {
		out.Text = over.Text
	}
	if over.Image != (tokens.ModalityDivisors{}) {
		out.Image = over.Image
	}
	if over.File != (tokens.ModalityDivisors{}) {
		out.File = over.File
	}
	if over.Audio != (tokens.ModalityDivisors{}) {
		out.Audio = over.Audio
	}
	return out
}

// Refresh rebuilds the catalog from provider listings and configured
// sources. See registry.Registry.Refresh for the merge rules.
func (r *Router) Refresh(ctx context.Context) error {
	if err := r.registry.Refresh(ctx); err != nil {
		return newError(KindRegistryError, "refresh", "catalog refresh failed", err)
	}
	return nil
}

// Registry exposes the underlying catalog for direct registration and
// search.
func (r *Router) Registry() *registry.Registry { return r.registry }

// Models lists every catalog entry.
func (r *Router) Models() []models.ModelInfo { return r.registry.List() }

// GetModel resolves a model identifier ("id" or "provider/id").
func (r *Router) GetModel(id string) (models.ModelInfo, bool) { return r.registry.Get(id) }

// SearchModels filters and scores the catalog without dispatching.
func (r *Router) SearchModels(p registry.Predicate) []registry.ScoredModel {
	return r.registry.Search(p)
}

// Close releases the accounting log. The router must not be used after
// Close.
func (r *Router) Close() error {
	if c, ok := r.usageLog.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// ── Operation facade ─────────────────────────────────────────────────────────

// Chat runs a non-streaming chat completion. When the chat cache is
// enabled, calls without per-request options are served from and stored
// into it; cached answers skip dispatch, hooks, and accounting.
func (r *Router) Chat(ctx context.Context, req providers.ChatRequest, opts ...RequestOption) (*providers.ChatResponse, error) {
	if r.chatCache != nil && len(opts) == 0 {
		key := cache.ChatKey(req)
		if resp, ok := r.chatCache.Get(key); ok {
			return resp, nil
		}
		resp, err := runGet(ctx, r, &chatOp, req, opts)
		if err != nil {
			return nil, err
		}
		r.chatCache.Put(key, resp)
		return resp, nil
	}
	return runGet(ctx, r, &chatOp, req, opts)
}

// ChatStream runs a streaming chat completion. The channel closes after the
// final chunk; a chunk with Err set terminates the stream.
func (r *Router) ChatStream(ctx context.Context, req providers.ChatRequest, opts ...RequestOption) (<-chan providers.ChatChunk, error) {
	return runStream(ctx, r, &chatOp, req, opts)
}

// GenerateImage produces images from a prompt.
func (r *Router) GenerateImage(ctx context.Context, req providers.ImageRequest, opts ...RequestOption) (*providers.ImageResponse, error) {
	return runGet(ctx, r, &imageGenerateOp, req, opts)
}

// GenerateImageStream produces images from a prompt, one chunk per image.
func (r *Router) GenerateImageStream(ctx context.Context, req providers.ImageRequest, opts ...RequestOption) (<-chan providers.ImageChunk, error) {
	return runStream(ctx, r, &imageGenerateOp, req, opts)
}

// EditImage edits or extends an existing image.
func (r *Router) EditImage(ctx context.Context, req providers.ImageEditRequest, opts ...RequestOption) (*providers.ImageResponse, error) {
	return runGet(ctx, r, &imageEditOp, req, opts)
}

// AnalyzeImage asks a vision model about one or more images.
func (r *Router) AnalyzeImage(ctx context.Context, req providers.ImageAnalysisRequest, opts ...RequestOption) (*providers.ChatResponse, error) {
	return runGet(ctx, r, &imageAnalyzeOp, req, opts)
}

// AnalyzeImageStream streams an image analysis answer.
func (r *Router) AnalyzeImageStream(ctx context.Context, req providers.ImageAnalysisRequest, opts ...RequestOption) (<-chan providers.ChatChunk, error) {
	return runStream(ctx, r, &imageAnalyzeOp, req, opts)
}

// Embed produces one vector per input string.
func (r *Router) Embed(ctx context.Context, req providers.EmbeddingRequest, opts ...RequestOption) (*providers.EmbeddingResponse, error) {
	return runGet(ctx, r, &embedOp, req, opts)
}

// Speech synthesises audio from text.
func (r *Router) Speech(ctx context.Context, req providers.SpeechRequest, opts ...RequestOption) (*providers.SpeechResponse, error) {
	return runGet(ctx, r, &speechOp, req, opts)
}

// Transcribe converts recorded audio to text.
func (r *Router) Transcribe(ctx context.Context, req providers.TranscriptionRequest, opts ...RequestOption) (*providers.TranscriptionResponse, error) {
	return runGet(ctx, r, &transcribeOp, req, opts)
}

// TranscribeStream converts recorded audio to text incrementally.
func (r *Router) TranscribeStream(ctx context.Context, req providers.TranscriptionRequest, opts ...RequestOption) (<-chan providers.TranscriptionChunk, error) {
	return runStream(ctx, r, &transcribeOp, req, opts)
}
