package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/ferro-labs/model-router/models"
)

// BedrockProvider dispatches chat through the AWS Bedrock runtime
// InvokeModel API. Supports Anthropic Claude, Amazon Titan, and Meta
// Llama model families.
type BedrockProvider struct {
	Base
	client *bedrockruntime.Client
	region string
}

// NewBedrock creates an AWS Bedrock provider using the default credential
// chain. region defaults to us-east-1.
func NewBedrock(region string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	base := NewBase("bedrock", "", fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region))
	return &BedrockProvider{
		Base:   base,
		client: bedrockruntime.NewFromConfig(cfg),
		region: region,
	}, nil
}

// CheckHealth reports whether AWS credentials resolve. The runtime API has
// no ping endpoint, so reachability is only proven by a real invoke.
func (p *BedrockProvider) CheckHealth(ctx context.Context) error {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("bedrock health check: %w", err)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return fmt.Errorf("bedrock health check: %w", err)
	}
	return nil
}

// ListModels returns well-known Bedrock model IDs. The runtime endpoint
// cannot enumerate foundation models, so the list is static.
func (p *BedrockProvider) ListModels(_ context.Context) ([]models.ModelInfo, error) {
	ids := []string{
		// Anthropic Claude
		"anthropic.claude-3-5-sonnet-20241022-v2:0",
		"anthropic.claude-3-5-haiku-20241022-v1:0",
		"anthropic.claude-3-opus-20240229-v1:0",
		"anthropic.claude-3-sonnet-20240229-v1:0",
		"anthropic.claude-3-haiku-20240307-v1:0",
		// Amazon Titan
		"amazon.titan-text-express-v1",
		"amazon.titan-text-lite-v1",
		"amazon.titan-text-premier-v1:0",
		// Meta Llama
		"meta.llama3-1-405b-instruct-v1:0",
		"meta.llama3-1-70b-instruct-v1:0",
		"meta.llama3-1-8b-instruct-v1:0",
		"meta.llama3-70b-instruct-v1:0",
		"meta.llama3-8b-instruct-v1:0",
	}
	out := make([]models.ModelInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ModelInfo{ID: id, Provider: p.name})
	}
	return out, nil
}

// ── Anthropic Claude on Bedrock ───────────────────────────────────────────────

type bedrockAnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string                    `json:"anthropic_version"`
	MaxTokens        int                       `json:"max_tokens"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
	Temperature      *float64                  `json:"temperature,omitempty"`
	TopP             *float64                  `json:"top_p,omitempty"`
	StopSequences    []string                  `json:"stop_sequences,omitempty"`
	System           string                    `json:"system,omitempty"`
}

type bedrockAnthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ── Amazon Titan ─────────────────────────────────────────────────────────────

type bedrockTitanRequest struct {
	InputText            string `json:"inputText"`
	TextGenerationConfig struct {
		MaxTokenCount int      `json:"maxTokenCount,omitempty"`
		Temperature   float64  `json:"temperature,omitempty"`
		TopP          *float64 `json:"topP,omitempty"`
		StopSequences []string `json:"stopSequences,omitempty"`
	} `json:"textGenerationConfig"`
}

type bedrockTitanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount       int    `json:"tokenCount"`
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
	} `json:"results"`
}

// ── Meta Llama ────────────────────────────────────────────────────────────────

type bedrockLlamaRequest struct {
	Prompt      string   `json:"prompt"`
	MaxGenLen   int      `json:"max_gen_len,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

type bedrockLlamaResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
	StopReason           string `json:"stop_reason"`
}

// Chat sends a chat request to AWS Bedrock, routing on the model ID prefix.
func (p *BedrockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.HasPrefix(req.Model, "anthropic.") {
		return p.chatAnthropic(ctx, req)
	}
	if strings.HasPrefix(req.Model, "amazon.titan") {
		return p.chatTitan(ctx, req)
	}
	if strings.HasPrefix(req.Model, "meta.llama") {
		return p.chatLlama(ctx, req)
	}
	return nil, fmt.Errorf("unsupported Bedrock model prefix for model: %s", req.Model)
}

// buildAnthropicRequest splits out the system turn and flattens multipart
// content to plain text.
func buildAnthropicRequest(req ChatRequest) bedrockAnthropicRequest {
	maxTokens := 1024
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	var system string
	var messages []bedrockAnthropicMessage
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			system = msg.Text()
		} else {
			messages = append(messages, bedrockAnthropicMessage{Role: msg.Role, Content: msg.Text()})
		}
	}

	return bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         messages,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		StopSequences:    req.Stop,
		System:           system,
	}
}

func (p *BedrockProvider) invoke(ctx context.Context, model string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}
	return output.Body, nil
}

func (p *BedrockProvider) chatAnthropic(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := p.invoke(ctx, req.Model, buildAnthropicRequest(req))
	if err != nil {
		return nil, err
	}

	var wire bedrockAnthropicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	text := ""
	for _, c := range wire.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	return &ChatResponse{
		ID:           wire.ID,
		Model:        req.Model,
		Message:      Message{Role: RoleAssistant, Content: text},
		FinishReason: wire.StopReason,
		Usage: &models.Usage{Text: &models.TokenUsage{
			Input:  wire.Usage.InputTokens,
			Output: wire.Usage.OutputTokens,
		}},
	}, nil
}

func (p *BedrockProvider) chatTitan(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	// Titan takes a single prompt, so messages are flattened.
	var sb strings.Builder
	for _, msg := range req.Messages {
		sb.WriteString(msg.Text())
		sb.WriteString("\n")
	}

	titanReq := bedrockTitanRequest{InputText: sb.String()}
	if req.MaxTokens != nil {
		titanReq.TextGenerationConfig.MaxTokenCount = *req.MaxTokens
	}
	if req.Temperature != nil {
		titanReq.TextGenerationConfig.Temperature = *req.Temperature
	}
	titanReq.TextGenerationConfig.TopP = req.TopP
	titanReq.TextGenerationConfig.StopSequences = req.Stop

	body, err := p.invoke(ctx, req.Model, titanReq)
	if err != nil {
		return nil, err
	}

	var wire bedrockTitanResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	resp := &ChatResponse{
		Model: req.Model,
		Usage: &models.Usage{Text: &models.TokenUsage{Input: wire.InputTextTokenCount}},
	}
	for _, result := range wire.Results {
		resp.Message.Role = RoleAssistant
		resp.Message.Content += result.OutputText
		resp.FinishReason = result.CompletionReason
		resp.Usage.Text.Output += result.TokenCount
	}
	return resp, nil
}

func (p *BedrockProvider) chatLlama(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var sb strings.Builder
	sb.WriteString("<|begin_of_text|>")
	for _, msg := range req.Messages {
		sb.WriteString(fmt.Sprintf("<|start_header_id|>%s<|end_header_id|>\n\n%s<|eot_id|>\n", msg.Role, msg.Text()))
	}
	sb.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")

	llamaReq := bedrockLlamaRequest{
		Prompt:      sb.String(),
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens != nil {
		llamaReq.MaxGenLen = *req.MaxTokens
	}

	body, err := p.invoke(ctx, req.Model, llamaReq)
	if err != nil {
		return nil, err
	}

	var wire bedrockLlamaResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &ChatResponse{
		Model:        req.Model,
		Message:      Message{Role: RoleAssistant, Content: wire.Generation},
		FinishReason: wire.StopReason,
		Usage: &models.Usage{Text: &models.TokenUsage{
			Input:  wire.PromptTokenCount,
			Output: wire.GenerationTokenCount,
		}},
	}, nil
}

// ChatStream sends a streaming chat request via InvokeModelWithResponseStream.
// Only Anthropic Claude streaming is implemented.
func (p *BedrockProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	if !strings.HasPrefix(req.Model, "anthropic.") {
		return nil, fmt.Errorf("streaming on Bedrock is currently only supported for anthropic.claude-* models")
	}

	body, err := json.Marshal(buildAnthropicRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock streaming invoke failed: %w", err)
	}

	ch := make(chan ChatChunk)
	go func() {
		defer close(ch)
		stream := output.GetStream()
		defer stream.Close()

		var inputTokens int
		for event := range stream.Events() {
			switch e := event.(type) {
			case *types.ResponseStreamMemberChunk:
				var wire struct {
					Type  string `json:"type"`
					Delta struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"delta"`
					Message struct {
						Usage struct {
							InputTokens int `json:"input_tokens"`
						} `json:"usage"`
					} `json:"message"`
					Usage struct {
						OutputTokens int `json:"output_tokens"`
					} `json:"usage"`
				}
				if err := json.Unmarshal(e.Value.Bytes, &wire); err != nil {
					continue
				}
				switch wire.Type {
				case "message_start":
					inputTokens = wire.Message.Usage.InputTokens
				case "content_block_delta":
					if wire.Delta.Type == "text_delta" {
						select {
						case ch <- ChatChunk{Model: req.Model, Delta: wire.Delta.Text}:
						case <-ctx.Done():
							return
						}
					}
				case "message_delta":
					chunk := ChatChunk{Model: req.Model, Usage: &models.Usage{Text: &models.TokenUsage{
						Input:  inputTokens,
						Output: wire.Usage.OutputTokens,
					}}}
					select {
					case ch <- chunk:
					case <-ctx.Done():
						return
					}
				}
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
