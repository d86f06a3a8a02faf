package registry

import (
	"context"

	"github.com/ferro-labs/model-router/providers"
)

// ModelHandler intercepts dispatch for one specific model, supplying custom
// executors or streamers that take precedence over the provider's own
// methods in the fallback ladder. Any subset of the function fields may be
// set; nil fields fall through to the provider.
//
// A handler with an empty Provider is keyed on the bare model id and applies
// regardless of which provider owns the model.
type ModelHandler struct {
	Provider string
	ModelID  string

	ChatGet    func(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
	ChatStream func(ctx context.Context, req providers.ChatRequest) (<-chan providers.ChatChunk, error)

	ImageGenerateGet    func(ctx context.Context, req providers.ImageRequest) (*providers.ImageResponse, error)
	ImageGenerateStream func(ctx context.Context, req providers.ImageRequest) (<-chan providers.ImageChunk, error)

	ImageEditGet func(ctx context.Context, req providers.ImageEditRequest) (*providers.ImageResponse, error)

	ImageAnalyzeGet    func(ctx context.Context, req providers.ImageAnalysisRequest) (*providers.ChatResponse, error)
	ImageAnalyzeStream func(ctx context.Context, req providers.ImageAnalysisRequest) (<-chan providers.ChatChunk, error)

	EmbedGet func(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error)

	SpeechGet func(ctx context.Context, req providers.SpeechRequest) (*providers.SpeechResponse, error)

	TranscribeGet    func(ctx context.Context, req providers.TranscriptionRequest) (*providers.TranscriptionResponse, error)
	TranscribeStream func(ctx context.Context, req providers.TranscriptionRequest) (<-chan providers.TranscriptionChunk, error)
}

func (h *ModelHandler) key() string {
	if h.Provider == "" {
		return h.ModelID
	}
	return h.Provider + "/" + h.ModelID
}
