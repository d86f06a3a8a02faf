package modelrouter

import (
	"context"
	"strings"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
	"github.com/ferro-labs/model-router/registry"
	"github.com/ferro-labs/model-router/tokens"
)

// Operation descriptors. Each binds one operation family to its static
// capability requirements, payload-derived requirements, estimator, and the
// handler/provider accessors the dispatch ladder walks.

var chatOp = operation[providers.ChatRequest, providers.ChatResponse, providers.ChatChunk]{
	name:       "chat",
	streamName: "chat-stream",
	required:   models.CapabilitySet{models.CapChat},

	model:    func(req providers.ChatRequest) string { return req.Model },
	setModel: func(req *providers.ChatRequest, id string) { req.Model = id },
	derive:   deriveChat,
	estimate: func(e *tokens.Estimator, req providers.ChatRequest) models.Usage { return e.Chat(req) },
	validate: func(req providers.ChatRequest) error {
		if err := validateTools(req.Tools); err != nil {
			return err
		}
		return validateResponseSchema(req.ResponseFormat)
	},

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.ChatRequest) (*providers.ChatResponse, error) {
		return h.ChatGet
	},
	handlerStream: func(h *registry.ModelHandler) func(context.Context, providers.ChatRequest) (<-chan providers.ChatChunk, error) {
		return h.ChatStream
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.ChatRequest) (*providers.ChatResponse, error), bool) {
		if c, ok := p.(providers.ChatCompleter); ok {
			return c.Chat, true
		}
		return nil, false
	},
	providerStream: func(p providers.Provider) (func(context.Context, providers.ChatRequest) (<-chan providers.ChatChunk, error), bool) {
		if s, ok := p.(providers.ChatStreamer); ok {
			return s.ChatStream, true
		}
		return nil, false
	},

	chunksToResponse: chatChunksToResponse,
	responseToChunks: chatResponseToChunks,

	usageOf:    func(resp *providers.ChatResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(c providers.ChatChunk) *models.Usage { return c.Usage },
	chunkErr:   func(c providers.ChatChunk) error { return c.Err },
}

var imageGenerateOp = operation[providers.ImageRequest, providers.ImageResponse, providers.ImageChunk]{
	name:       "image-generate",
	streamName: "image-generate-stream",
	required:   models.CapabilitySet{models.CapImage},

	model:    func(req providers.ImageRequest) string { return req.Model },
	setModel: func(req *providers.ImageRequest, id string) { req.Model = id },
	derive: func(req providers.ImageRequest) (models.CapabilitySet, models.ParameterSet) {
		var params models.ParameterSet
		if req.Quality != "" {
			params = params.Add(models.ParamQuality)
		}
		if req.Size != nil {
			params = params.Add(models.ParamSize)
		}
		if req.Style != "" {
			params = params.Add(models.ParamStyle)
		}
		return nil, params
	},
	estimate: func(e *tokens.Estimator, req providers.ImageRequest) models.Usage { return e.Image(req) },

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.ImageRequest) (*providers.ImageResponse, error) {
		return h.ImageGenerateGet
	},
	handlerStream: func(h *registry.ModelHandler) func(context.Context, providers.ImageRequest) (<-chan providers.ImageChunk, error) {
		return h.ImageGenerateStream
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.ImageRequest) (*providers.ImageResponse, error), bool) {
		if g, ok := p.(providers.ImageGenerator); ok {
			return g.GenerateImage, true
		}
		return nil, false
	},
	providerStream: func(p providers.Provider) (func(context.Context, providers.ImageRequest) (<-chan providers.ImageChunk, error), bool) {
		if s, ok := p.(providers.ImageGenerateStreamer); ok {
			return s.GenerateImageStream, true
		}
		return nil, false
	},

	chunksToResponse: imageChunksToResponse,
	responseToChunks: imageResponseToChunks,

	usageOf:    func(resp *providers.ImageResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(c providers.ImageChunk) *models.Usage { return c.Usage },
	chunkErr:   func(c providers.ImageChunk) error { return c.Err },
}

var imageEditOp = operation[providers.ImageEditRequest, providers.ImageResponse, providers.ImageChunk]{
	name:     "image-edit",
	required: models.CapabilitySet{models.CapImage},

	model:    func(req providers.ImageEditRequest) string { return req.Model },
	setModel: func(req *providers.ImageEditRequest, id string) { req.Model = id },
	derive: func(req providers.ImageEditRequest) (models.CapabilitySet, models.ParameterSet) {
		var params models.ParameterSet
		if req.Size != nil {
			params = params.Add(models.ParamSize)
		}
		return nil, params
	},
	estimate: func(e *tokens.Estimator, req providers.ImageEditRequest) models.Usage { return e.ImageEdit(req) },

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.ImageEditRequest) (*providers.ImageResponse, error) {
		return h.ImageEditGet
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.ImageEditRequest) (*providers.ImageResponse, error), bool) {
		if e, ok := p.(providers.ImageEditor); ok {
			return e.EditImage, true
		}
		return nil, false
	},

	usageOf:    func(resp *providers.ImageResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(c providers.ImageChunk) *models.Usage { return c.Usage },
	chunkErr:   func(c providers.ImageChunk) error { return c.Err },
}

var imageAnalyzeOp = operation[providers.ImageAnalysisRequest, providers.ChatResponse, providers.ChatChunk]{
	name:       "image-analyze",
	streamName: "image-analyze-stream",
	required:   models.CapabilitySet{models.CapChat, models.CapVision},

	model:    func(req providers.ImageAnalysisRequest) string { return req.Model },
	setModel: func(req *providers.ImageAnalysisRequest, id string) { req.Model = id },
	derive: func(req providers.ImageAnalysisRequest) (models.CapabilitySet, models.ParameterSet) {
		var params models.ParameterSet
		if req.MaxTokens != nil {
			params = params.Add(models.ParamMaxTokens)
		}
		return nil, params
	},
	estimate: func(e *tokens.Estimator, req providers.ImageAnalysisRequest) models.Usage {
		return e.ImageAnalysis(req)
	},

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.ImageAnalysisRequest) (*providers.ChatResponse, error) {
		return h.ImageAnalyzeGet
	},
	handlerStream: func(h *registry.ModelHandler) func(context.Context, providers.ImageAnalysisRequest) (<-chan providers.ChatChunk, error) {
		return h.ImageAnalyzeStream
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.ImageAnalysisRequest) (*providers.ChatResponse, error), bool) {
		if a, ok := p.(providers.ImageAnalyzer); ok {
			return a.AnalyzeImage, true
		}
		return nil, false
	},
	providerStream: func(p providers.Provider) (func(context.Context, providers.ImageAnalysisRequest) (<-chan providers.ChatChunk, error), bool) {
		if s, ok := p.(providers.ImageAnalyzeStreamer); ok {
			return s.AnalyzeImageStream, true
		}
		return nil, false
	},

	chunksToResponse: chatChunksToResponse,
	responseToChunks: chatResponseToChunks,

	usageOf:    func(resp *providers.ChatResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(c providers.ChatChunk) *models.Usage { return c.Usage },
	chunkErr:   func(c providers.ChatChunk) error { return c.Err },
}

var embedOp = operation[providers.EmbeddingRequest, providers.EmbeddingResponse, struct{}]{
	name:     "embedding",
	required: models.CapabilitySet{models.CapEmbedding},

	model:    func(req providers.EmbeddingRequest) string { return req.Model },
	setModel: func(req *providers.EmbeddingRequest, id string) { req.Model = id },
	derive: func(req providers.EmbeddingRequest) (models.CapabilitySet, models.ParameterSet) {
		var params models.ParameterSet
		if req.Dimensions != nil {
			params = params.Add(models.ParamDimensions)
		}
		return nil, params
	},
	estimate: func(e *tokens.Estimator, req providers.EmbeddingRequest) models.Usage { return e.Embedding(req) },

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
		return h.EmbedGet
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.EmbeddingRequest) (*providers.EmbeddingResponse, error), bool) {
		if e, ok := p.(providers.Embedder); ok {
			return e.Embed, true
		}
		return nil, false
	},

	usageOf:    func(resp *providers.EmbeddingResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(struct{}) *models.Usage { return nil },
	chunkErr:   func(struct{}) error { return nil },
}

var speechOp = operation[providers.SpeechRequest, providers.SpeechResponse, struct{}]{
	name:     "speech",
	required: models.CapabilitySet{models.CapAudio},

	model:    func(req providers.SpeechRequest) string { return req.Model },
	setModel: func(req *providers.SpeechRequest, id string) { req.Model = id },
	derive: func(req providers.SpeechRequest) (models.CapabilitySet, models.ParameterSet) {
		var params models.ParameterSet
		if req.Voice != "" {
			params = params.Add(models.ParamVoice)
		}
		if req.Speed != nil {
			params = params.Add(models.ParamSpeed)
		}
		return nil, params
	},
	estimate: func(e *tokens.Estimator, req providers.SpeechRequest) models.Usage { return e.Speech(req) },

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.SpeechRequest) (*providers.SpeechResponse, error) {
		return h.SpeechGet
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.SpeechRequest) (*providers.SpeechResponse, error), bool) {
		if s, ok := p.(providers.SpeechSynthesizer); ok {
			return s.Speech, true
		}
		return nil, false
	},

	usageOf:    func(resp *providers.SpeechResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(struct{}) *models.Usage { return nil },
	chunkErr:   func(struct{}) error { return nil },
}

var transcribeOp = operation[providers.TranscriptionRequest, providers.TranscriptionResponse, providers.TranscriptionChunk]{
	name:       "transcribe",
	streamName: "transcribe-stream",
	required:   models.CapabilitySet{models.CapHearing},

	model:    func(req providers.TranscriptionRequest) string { return req.Model },
	setModel: func(req *providers.TranscriptionRequest, id string) { req.Model = id },
	derive: func(req providers.TranscriptionRequest) (models.CapabilitySet, models.ParameterSet) {
		var params models.ParameterSet
		if req.Language != "" {
			params = params.Add(models.ParamLanguage)
		}
		return nil, params
	},
	estimate: func(e *tokens.Estimator, req providers.TranscriptionRequest) models.Usage {
		return e.Transcription(req)
	},

	handlerGet: func(h *registry.ModelHandler) func(context.Context, providers.TranscriptionRequest) (*providers.TranscriptionResponse, error) {
		return h.TranscribeGet
	},
	handlerStream: func(h *registry.ModelHandler) func(context.Context, providers.TranscriptionRequest) (<-chan providers.TranscriptionChunk, error) {
		return h.TranscribeStream
	},
	providerGet: func(p providers.Provider) (func(context.Context, providers.TranscriptionRequest) (*providers.TranscriptionResponse, error), bool) {
		if t, ok := p.(providers.Transcriber); ok {
			return t.Transcribe, true
		}
		return nil, false
	},
	providerStream: func(p providers.Provider) (func(context.Context, providers.TranscriptionRequest) (<-chan providers.TranscriptionChunk, error), bool) {
		if s, ok := p.(providers.TranscribeStreamer); ok {
			return s.TranscribeStream, true
		}
		return nil, false
	},

	chunksToResponse: transcriptionChunksToResponse,
	responseToChunks: transcriptionResponseToChunks,

	usageOf:    func(resp *providers.TranscriptionResponse) *models.Usage { return resp.Usage },
	chunkUsage: func(c providers.TranscriptionChunk) *models.Usage { return c.Usage },
	chunkErr:   func(c providers.TranscriptionChunk) error { return c.Err },
}

// deriveChat maps chat payload features to the capabilities and parameters
// the serving model must support.
func deriveChat(req providers.ChatRequest) (models.CapabilitySet, models.ParameterSet) {
	var caps models.CapabilitySet
	var params models.ParameterSet

	for _, msg := range req.Messages {
		for _, part := range msg.Parts {
			switch part.Type {
			case providers.PartImage:
				caps = caps.Add(models.CapVision)
			case providers.PartAudio:
				caps = caps.Add(models.CapHearing)
			}
		}
	}
	if len(req.Tools) > 0 {
		caps = caps.Add(models.CapTools)
		params = params.Add(models.ParamTools)
	}
	if rf := req.ResponseFormat; rf != nil {
		if len(rf.Schema) > 0 {
			caps = caps.Add(models.CapStructured)
		} else if rf.Type == "json" {
			caps = caps.Add(models.CapJSON)
		}
		params = params.Add(models.ParamResponseFormat)
	}
	if req.Reason != "" {
		caps = caps.Add(models.CapReasoning)
		params = params.Add(models.ParamReasoningEffort)
	}

	if req.MaxTokens != nil {
		params = params.Add(models.ParamMaxTokens)
	}
	if req.Temperature != nil {
		params = params.Add(models.ParamTemperature)
	}
	if req.TopP != nil {
		params = params.Add(models.ParamTopP)
	}
	if req.Seed != nil {
		params = params.Add(models.ParamSeed)
	}
	if req.PresencePenalty != nil {
		params = params.Add(models.ParamPresencePenalty)
	}
	if req.FrequencyPenalty != nil {
		params = params.Add(models.ParamFrequencyPenalty)
	}
	if len(req.Stop) > 0 {
		params = params.Add(models.ParamStop)
	}
	return caps, params
}

// ── Chunk/response adapters ──────────────────────────────────────────────────

func chatChunksToResponse(model string, chunks []providers.ChatChunk) (*providers.ChatResponse, error) {
	resp := &providers.ChatResponse{Model: model}
	var sb strings.Builder
	var usage models.Usage
	sawUsage := false
	for _, c := range chunks {
		if c.ID != "" {
			resp.ID = c.ID
		}
		if c.Model != "" {
			resp.Model = c.Model
		}
		sb.WriteString(c.Delta)
		resp.Message.ToolCalls = append(resp.Message.ToolCalls, c.ToolCalls...)
		if c.FinishReason != "" {
			resp.FinishReason = c.FinishReason
		}
		if c.Usage != nil {
			usage.Accumulate(*c.Usage)
			sawUsage = true
		}
	}
	resp.Message.Role = providers.RoleAssistant
	resp.Message.Content = sb.String()
	if sawUsage {
		resp.Usage = &usage
	}
	return resp, nil
}

func chatResponseToChunks(resp *providers.ChatResponse) []providers.ChatChunk {
	return []providers.ChatChunk{{
		ID:           resp.ID,
		Model:        resp.Model,
		Delta:        resp.Message.Text(),
		ToolCalls:    resp.Message.ToolCalls,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}}
}

func imageChunksToResponse(model string, chunks []providers.ImageChunk) (*providers.ImageResponse, error) {
	resp := &providers.ImageResponse{Model: model}
	var usage models.Usage
	sawUsage := false
	for _, c := range chunks {
		if c.Model != "" {
			resp.Model = c.Model
		}
		if c.Image != nil {
			resp.Images = append(resp.Images, *c.Image)
		}
		if c.Usage != nil {
			usage.Accumulate(*c.Usage)
			sawUsage = true
		}
	}
	if sawUsage {
		resp.Usage = &usage
	}
	return resp, nil
}

func imageResponseToChunks(resp *providers.ImageResponse) []providers.ImageChunk {
	if len(resp.Images) == 0 {
		return []providers.ImageChunk{{Model: resp.Model, Usage: resp.Usage}}
	}
	chunks := make([]providers.ImageChunk, 0, len(resp.Images))
	for i := range resp.Images {
		c := providers.ImageChunk{Model: resp.Model, Image: &resp.Images[i]}
		if i == len(resp.Images)-1 {
			c.Usage = resp.Usage
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func transcriptionChunksToResponse(model string, chunks []providers.TranscriptionChunk) (*providers.TranscriptionResponse, error) {
	resp := &providers.TranscriptionResponse{Model: model}
	var sb strings.Builder
	var usage models.Usage
	sawUsage := false
	for _, c := range chunks {
		if c.Model != "" {
			resp.Model = c.Model
		}
		sb.WriteString(c.Delta)
		if c.Usage != nil {
			usage.Accumulate(*c.Usage)
			sawUsage = true
		}
	}
	resp.Text = sb.String()
	if sawUsage {
		resp.Usage = &usage
	}
	return resp, nil
}

func transcriptionResponseToChunks(resp *providers.TranscriptionResponse) []providers.TranscriptionChunk {
	return []providers.TranscriptionChunk{{
		Model: resp.Model,
		Delta: resp.Text,
		Usage: resp.Usage,
	}}
}
