package providers

import (
	"context"

	"github.com/ferro-labs/model-router/models"
)

// DefaultPriority is the provider priority used when an implementation does
// not specify one. Lower values win.
const DefaultPriority = 10

// Provider is the minimal contract every backend must satisfy. Operation
// dispatch is expressed through the optional interfaces below; the set a
// provider implements determines its capability set.
type Provider interface {
	Name() string
	// Priority orders providers during selection and refresh; lower wins.
	Priority() int
	CheckHealth(ctx context.Context) error
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
}

// MetadataDefaulter is implemented by providers that contribute default
// selection metadata to every request they serve.
type MetadataDefaulter interface {
	DefaultMetadata() models.Metadata
}

// ChatCompleter handles non-streaming chat.
type ChatCompleter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatStreamer handles streaming chat. The channel is closed after the last
// chunk; a chunk with Err set signals a mid-stream failure.
type ChatStreamer interface {
	ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error)
}

// ImageGenerator handles image generation.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// ImageGenerateStreamer streams generated images one chunk per image.
type ImageGenerateStreamer interface {
	GenerateImageStream(ctx context.Context, req ImageRequest) (<-chan ImageChunk, error)
}

// ImageEditor handles image editing.
type ImageEditor interface {
	EditImage(ctx context.Context, req ImageEditRequest) (*ImageResponse, error)
}

// ImageAnalyzer answers questions about images via a vision model.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, req ImageAnalysisRequest) (*ChatResponse, error)
}

// ImageAnalyzeStreamer streams an image analysis answer.
type ImageAnalyzeStreamer interface {
	AnalyzeImageStream(ctx context.Context, req ImageAnalysisRequest) (<-chan ChatChunk, error)
}

// Embedder handles embedding generation.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

// SpeechSynthesizer handles text-to-speech.
type SpeechSynthesizer interface {
	Speech(ctx context.Context, req SpeechRequest) (*SpeechResponse, error)
}

// Transcriber handles non-streaming audio transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}

// TranscribeStreamer streams transcription text as it is recognised.
type TranscribeStreamer interface {
	TranscribeStream(ctx context.Context, req TranscriptionRequest) (<-chan TranscriptionChunk, error)
}

// Detect derives a provider's capability set from the dispatch interfaces it
// implements. Image analyzers answer in the chat shape, so they contribute
// chat. Model-level capabilities (vision, tools, json, structured,
// reasoning, zdr) are always included so they never filter a provider out;
// those are reconciled per model.
func Detect(p Provider) models.CapabilitySet {
	var caps models.CapabilitySet
	if _, ok := p.(ChatCompleter); ok {
		caps = caps.Add(models.CapChat)
	}
	if _, ok := p.(ChatStreamer); ok {
		caps = caps.Add(models.CapChat)
		caps = caps.Add(models.CapStreaming)
	}
	if _, ok := p.(ImageGenerator); ok {
		caps = caps.Add(models.CapImage)
	}
	if _, ok := p.(ImageGenerateStreamer); ok {
		caps = caps.Add(models.CapImage)
		caps = caps.Add(models.CapStreaming)
	}
	if _, ok := p.(ImageEditor); ok {
		caps = caps.Add(models.CapImage)
	}
	if _, ok := p.(ImageAnalyzer); ok {
		caps = caps.Add(models.CapChat)
	}
	if _, ok := p.(ImageAnalyzeStreamer); ok {
		caps = caps.Add(models.CapChat)
		caps = caps.Add(models.CapStreaming)
	}
	if _, ok := p.(SpeechSynthesizer); ok {
		caps = caps.Add(models.CapAudio)
	}
	if _, ok := p.(Transcriber); ok {
		caps = caps.Add(models.CapHearing)
	}
	if _, ok := p.(TranscribeStreamer); ok {
		caps = caps.Add(models.CapHearing)
		caps = caps.Add(models.CapStreaming)
	}
	if _, ok := p.(Embedder); ok {
		caps = caps.Add(models.CapEmbedding)
	}
	for _, c := range models.ModelLevelCapabilities {
		caps = caps.Add(c)
	}
	return caps
}
