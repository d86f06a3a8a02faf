package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ferro-labs/model-router/models"
)

// OpenAIProvider dispatches chat, streaming, embeddings, and image
// generation through the openai-go SDK. Speech, transcription, image
// analysis, and model listing go through the REST API directly.
type OpenAIProvider struct {
	Base
	client openai.Client
	http   *http.Client
}

// NewOpenAI creates an OpenAI provider. The optional baseURL parameter
// allows overriding the API endpoint (pass "" for the default).
func NewOpenAI(apiKey string, baseURL string) (*OpenAIProvider, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	resolvedBase := "https://api.openai.com"
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		resolvedBase = baseURL
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		Base:   NewBase("openai", apiKey, resolvedBase),
		client: client,
		http:   &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// CheckHealth verifies API reachability and key validity via GET /v1/models.
func (p *OpenAIProvider) CheckHealth(ctx context.Context) error {
	resp, err := p.get(ctx, "/v1/models")
	if err != nil {
		return fmt.Errorf("openai health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// ListModels enumerates the account's models from GET /v1/models.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	resp, err := p.get(ctx, "/v1/models")
	if err != nil {
		return nil, fmt.Errorf("openai model listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai model listing: HTTP %d: %s", resp.StatusCode, string(body))
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("openai model listing: %w", err)
	}
	out := make([]models.ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		out = append(out, models.ModelInfo{ID: m.ID, Provider: p.name})
	}
	return out, nil
}

// Chat sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Messages: buildOpenAIMessages(req.Messages),
		Model:    req.Model,
	}
	applyOpenAIParams(&params, req)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{
		ID:    completion.ID,
		Model: completion.Model,
		Usage: &models.Usage{
			Text: &models.TokenUsage{
				Input:  int(completion.Usage.PromptTokens),
				Output: int(completion.Usage.CompletionTokens),
				Cached: int(completion.Usage.PromptTokensDetails.CachedTokens),
			},
		},
	}
	if rt := completion.Usage.CompletionTokensDetails.ReasoningTokens; rt > 0 {
		resp.Usage.Reasoning = &models.TokenUsage{Output: int(rt)}
	}
	if len(completion.Choices) > 0 {
		choice := completion.Choices[0]
		msg := Message{
			Role:    string(choice.Message.Role),
			Content: choice.Message.Content,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		resp.Message = msg
		resp.FinishReason = string(choice.FinishReason)
	}
	return resp, nil
}

// ChatStream sends a streaming chat completion request to OpenAI.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	params := openai.ChatCompletionNewParams{
		Messages: buildOpenAIMessages(req.Messages),
		Model:    req.Model,
	}
	applyOpenAIParams(&params, req)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan ChatChunk)
	go func() {
		defer close(ch)
		for stream.Next() {
			chunk := stream.Current()
			out := ChatChunk{ID: chunk.ID, Model: chunk.Model}
			for _, c := range chunk.Choices {
				out.Delta += c.Delta.Content
				if c.FinishReason != "" {
					out.FinishReason = c.FinishReason
				}
			}
			if chunk.Usage.TotalTokens > 0 {
				out.Usage = &models.Usage{Text: &models.TokenUsage{
					Input:  int(chunk.Usage.PromptTokens),
					Output: int(chunk.Usage.CompletionTokens),
				}}
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case ch <- ChatChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// Embed sends an embedding request to OpenAI.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	params := openai.EmbeddingNewParams{
		Model:          req.Model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Input},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if req.Dimensions != nil {
		params.Dimensions = openai.Int(int64(*req.Dimensions))
	}

	result, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(result.Data))
	for i, d := range result.Data {
		vectors[i] = d.Embedding
	}
	return &EmbeddingResponse{
		Model:      string(result.Model),
		Embeddings: vectors,
		Usage: &models.Usage{Embeddings: &models.EmbeddingUsage{
			Count:  len(vectors),
			Tokens: int(result.Usage.PromptTokens),
		}},
	}, nil
}

// GenerateImage sends an image generation request to OpenAI.
func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(req.Model),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if req.N > 0 {
		params.N = openai.Int(int64(req.N))
	}
	if req.Size != nil {
		params.Size = openai.ImageGenerateParamsSize(fmt.Sprintf("%dx%d", req.Size.Width, req.Size.Height))
	}
	if req.Quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(req.Quality)
	}
	if req.Style != "" {
		params.Style = openai.ImageGenerateParamsStyle(req.Style)
	}

	result, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, err
	}

	images := make([]GeneratedImage, len(result.Data))
	for i, d := range result.Data {
		images[i] = GeneratedImage{
			URL:           d.URL,
			RevisedPrompt: d.RevisedPrompt,
		}
	}
	resp := &ImageResponse{Model: req.Model, Images: images}
	if req.Size != nil {
		resp.Usage = &models.Usage{Image: &models.ImageUsage{
			Output: []models.ImageOutputUsage{{
				Quality: req.Quality,
				Width:   req.Size.Width,
				Height:  req.Size.Height,
				Count:   len(images),
			}},
		}}
	}
	return resp, nil
}

// AnalyzeImage asks a vision model about the supplied images via the REST
// chat completions endpoint.
func (p *OpenAIProvider) AnalyzeImage(ctx context.Context, req ImageAnalysisRequest) (*ChatResponse, error) {
	type imageURL struct {
		URL    string `json:"url"`
		Detail string `json:"detail,omitempty"`
	}
	type part struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}
	parts := []part{{Type: "text", Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, part{Type: "image_url", ImageURL: &imageURL{URL: img.URL, Detail: img.Detail}})
	}
	payload := map[string]any{
		"model": req.Model,
		"messages": []map[string]any{
			{"role": RoleUser, "content": parts},
		},
	}
	if req.MaxTokens != nil {
		payload["max_tokens"] = *req.MaxTokens
	}

	respBody, err := p.postJSON(ctx, "/v1/chat/completions", payload, "openai image analysis")
	if err != nil {
		return nil, err
	}

	var wire struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("openai image analysis: %w", err)
	}

	resp := &ChatResponse{
		ID:    wire.ID,
		Model: wire.Model,
		Usage: &models.Usage{Text: &models.TokenUsage{
			Input:  wire.Usage.PromptTokens,
			Output: wire.Usage.CompletionTokens,
		}},
	}
	if len(wire.Choices) > 0 {
		resp.Message = Message{Role: wire.Choices[0].Message.Role, Content: wire.Choices[0].Message.Content}
		resp.FinishReason = wire.Choices[0].FinishReason
	}
	return resp, nil
}

// Speech synthesises audio via POST /v1/audio/speech.
func (p *OpenAIProvider) Speech(ctx context.Context, req SpeechRequest) (*SpeechResponse, error) {
	voice := req.Voice
	if voice == "" {
		voice = "alloy"
	}
	payload := map[string]any{
		"model": req.Model,
		"input": req.Input,
		"voice": voice,
	}
	if req.Format != "" {
		payload["response_format"] = req.Format
	}
	if req.Speed != nil {
		payload["speed"] = *req.Speed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	audio, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai speech: HTTP %d: %s", httpResp.StatusCode, string(audio))
	}

	return &SpeechResponse{
		Model:    req.Model,
		Audio:    audio,
		MIMEType: httpResp.Header.Get("Content-Type"),
	}, nil
}

// Transcribe uploads audio to POST /v1/audio/transcriptions.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, err
	}
	_ = w.WriteField("model", req.Model)
	if req.Language != "" {
		_ = w.WriteField("language", req.Language)
	}
	if req.Prompt != "" {
		_ = w.WriteField("prompt", req.Prompt)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai transcription: HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	var wire struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	return &TranscriptionResponse{Model: req.Model, Text: wire.Text}, nil
}

// get issues an authenticated GET against the REST API.
func (p *OpenAIProvider) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return p.http.Do(req)
}

// postJSON issues an authenticated JSON POST and returns the response body,
// turning non-200 statuses into errors tagged with op.
func (p *OpenAIProvider) postJSON(ctx context.Context, path string, payload any, op string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// buildOpenAIMessages converts neutral Messages to the openai-go SDK union type.
func buildOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text()))
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Text(), msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Text()))
		}
	}
	return out
}

// applyOpenAIParams applies all optional ChatRequest fields to the SDK params struct.
func applyOpenAIParams(params *openai.ChatCompletionNewParams, req ChatRequest) {
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(*req.Seed)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Stop,
		}
	}
	if req.Reason != "" {
		params.ReasoningEffort = openai.ReasoningEffort(req.Reason)
	}
	if req.ResponseFormat != nil {
		switch {
		case len(req.ResponseFormat.Schema) > 0:
			var schema openai.ResponseFormatJSONSchemaJSONSchemaParam
			if err := json.Unmarshal(req.ResponseFormat.Schema, &schema); err == nil {
				params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
					OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
						JSONSchema: schema,
					},
				}
			}
		case req.ResponseFormat.Type == "json":
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
			}
		}
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			var paramSchema openai.FunctionParameters
			if len(t.Parameters) > 0 {
				json.Unmarshal(t.Parameters, &paramSchema) //nolint:errcheck,gosec
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  paramSchema,
					Strict:      openai.Bool(t.Strict),
				},
			})
		}
		params.Tools = tools
	}
}
