package modelrouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
	"github.com/ferro-labs/model-router/registry"
)

func chatReq(content string) providers.ChatRequest {
	return providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: content}},
	}
}

func TestChat_SelectsAndDispatches(t *testing.T) {
	p := &completerProvider{name: "openai"}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
	})

	resp, err := r.Chat(context.Background(), chatReq("ping"))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Message.Content != "pong" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	// The selected model id is written into the dispatched request.
	if p.lastChat.Model != "gpt-4o" {
		t.Errorf("dispatched model = %q", p.lastChat.Model)
	}
}

func TestChat_NoModelFound(t *testing.T) {
	r := mustRouter(t, Config{})
	_, err := r.Chat(context.Background(), chatReq("hi"))
	if !errors.Is(err, &Error{Kind: KindNoModelFound}) {
		t.Errorf("expected no-model-found, got %v", err)
	}
}

func TestChat_PinnedModelCapabilityMissing(t *testing.T) {
	p := &completerProvider{name: "openai"}
	embedModel := models.ModelInfo{
		ID: "text-embedding-3-small", Provider: "openai", ContextWindow: 8191,
		Capabilities: models.CapabilitySet{models.CapEmbedding},
	}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{embedModel},
	})

	req := chatReq("hi")
	req.Model = "text-embedding-3-small"
	_, err := r.Chat(context.Background(), req)
	// The model exists, so the caller learns it is a capability problem
	// rather than an unknown id.
	if !errors.Is(err, &Error{Kind: KindProviderCapabilityMissing}) {
		t.Errorf("expected capability-missing, got %v", err)
	}

	req.Model = "no-such-model"
	_, err = r.Chat(context.Background(), req)
	if !errors.Is(err, &Error{Kind: KindNoModelFound}) {
		t.Errorf("expected no-model-found for unknown id, got %v", err)
	}
}

func TestChat_DerivedCapabilityFiltersModels(t *testing.T) {
	p := &completerProvider{name: "openai"}
	textOnly := testChatModel("text-only", "openai")
	vision := testChatModel("vision", "openai")
	vision.Capabilities = vision.Capabilities.Add(models.CapVision)
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{textOnly, vision},
	})

	req := providers.ChatRequest{Messages: []providers.Message{{
		Role: "user",
		Parts: []providers.ContentPart{
			{Type: providers.PartText, Text: "what is this"},
			{Type: providers.PartImage, URL: "https://example.com/x.png"},
		},
	}}}
	if _, err := r.Chat(context.Background(), req); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if p.lastChat.Model != "vision" {
		t.Errorf("image part should force the vision model, got %q", p.lastChat.Model)
	}
}

func TestChat_InvalidToolSchemaRejected(t *testing.T) {
	p := &completerProvider{name: "openai"}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
	})

	req := chatReq("hi")
	req.Tools = []providers.Tool{{Name: "f", Parameters: []byte(`{"type": 12}`)}}
	_, err := r.Chat(context.Background(), req)
	if !errors.Is(err, &Error{Kind: KindValidationFailed}) {
		t.Errorf("expected validation-failed, got %v", err)
	}

	req.Tools = []providers.Tool{{Name: ""}}
	_, err = r.Chat(context.Background(), req)
	if !errors.Is(err, &Error{Kind: KindValidationFailed}) {
		t.Errorf("expected validation-failed for empty tool name, got %v", err)
	}
}

func TestChat_CancelledContext(t *testing.T) {
	var gotErr *Error
	r := mustRouter(t, Config{
		Providers: []providers.Provider{&completerProvider{name: "openai"}},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			OnError: func(ctx context.Context, err *Error) { gotErr = err },
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Chat(ctx, chatReq("hi"))
	if !errors.Is(err, &Error{Kind: KindCancelled}) {
		t.Errorf("expected cancelled, got %v", err)
	}
	if gotErr == nil || gotErr.Kind != KindCancelled {
		t.Errorf("OnError got %v", gotErr)
	}
}

func TestChat_ProviderErrorWrapped(t *testing.T) {
	p := &completerProvider{name: "openai", chatErr: errors.New("upstream 500")}
	afterCalled := false
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				afterCalled = true
			},
		},
	})

	_, err := r.Chat(context.Background(), chatReq("hi"))
	if !errors.Is(err, &Error{Kind: KindProviderError}) {
		t.Errorf("expected provider-error, got %v", err)
	}
	if afterCalled {
		t.Error("AfterRequest must not fire on failure")
	}
	// The failure lands in the model's outcome counters.
	m, _ := r.GetModel("openai/gpt-4o")
	if m.Metrics == nil || m.Metrics.FailureCount != 1 {
		t.Errorf("failure not recorded: %+v", m.Metrics)
	}
}

func TestChat_HandlerInterceptsDispatch(t *testing.T) {
	p := &completerProvider{name: "openai"}
	handled := &providers.ChatResponse{Message: providers.Message{Content: "from handler"}}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Handlers: []*registry.ModelHandler{{
			ModelID: "gpt-4o",
			ChatGet: func(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
				return handled, nil
			},
		}},
	})

	resp, err := r.Chat(context.Background(), chatReq("hi"))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp != handled {
		t.Error("handler response not returned")
	}
	if p.lastChat.Model != "" {
		t.Error("provider should not have been called")
	}
}

func TestChat_FallsBackToProviderStream(t *testing.T) {
	p := &streamerProvider{name: "openai", chunks: []providers.ChatChunk{
		{Delta: "Hel"},
		{Delta: "lo", FinishReason: "stop", Usage: &models.Usage{
			Text: &models.TokenUsage{Input: 3, Output: 2},
		}},
	}}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
	})

	resp, err := r.Chat(context.Background(), chatReq("hi"))
	if err != nil {
		t.Fatalf("chat via stream fallback: %v", err)
	}
	if resp.Message.Content != "Hello" || resp.Message.Role != providers.RoleAssistant {
		t.Errorf("collected message = %+v", resp.Message)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.Text.Output != 2 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatStream_FallsBackToProviderGet(t *testing.T) {
	p := &completerProvider{name: "openai"}
	done := make(chan struct{})
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				close(done)
			},
		},
	})

	ch, err := r.ChatStream(context.Background(), chatReq("hi"))
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	var chunks []providers.ChatChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	if len(chunks) != 1 || chunks[0].Delta != "pong" {
		t.Errorf("chunks = %+v", chunks)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AfterRequest did not fire after stream close")
	}
}

func TestChatStream_UsageAccumulates(t *testing.T) {
	p := &streamerProvider{name: "openai", chunks: []providers.ChatChunk{
		{Delta: "a", Usage: &models.Usage{Text: &models.TokenUsage{Input: 10, Output: 1}}},
		{Delta: "b", Usage: &models.Usage{Text: &models.TokenUsage{Input: 10, Output: 2}}},
	}}
	var got models.Usage
	done := make(chan struct{})
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				got = usage
				close(done)
			},
		},
	})

	ch, err := r.ChatStream(context.Background(), chatReq("hi"))
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	for range ch {
	}
	<-done

	if got.Text == nil || got.Text.Input != 10 || got.Text.Output != 2 {
		t.Errorf("accumulated usage = %+v", got.Text)
	}
}

func TestChatStream_NoUsageFallsBackToEstimate(t *testing.T) {
	p := &streamerProvider{name: "openai", chunks: []providers.ChatChunk{{Delta: "x"}}}
	var got models.Usage
	done := make(chan struct{})
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				got = usage
				close(done)
			},
		},
	})

	ch, err := r.ChatStream(context.Background(), chatReq("some longer message body"))
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	for range ch {
	}
	<-done

	if got.Text == nil || got.Text.Input == 0 {
		t.Errorf("expected estimated usage, got %+v", got.Text)
	}
}

func TestChatStream_ErrorChunkForwarded(t *testing.T) {
	streamErr := errors.New("mid-stream failure")
	p := &streamerProvider{name: "openai", chunks: []providers.ChatChunk{
		{Delta: "partial"},
		{Err: streamErr},
	}}
	var hookErr *Error
	afterCalled := false
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			OnError: func(ctx context.Context, err *Error) { hookErr = err },
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				afterCalled = true
			},
		},
	})

	ch, err := r.ChatStream(context.Background(), chatReq("hi"))
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	var chunks []providers.ChatChunk
	for c := range ch {
		chunks = append(chunks, c)
	}

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Delta != "partial" {
		t.Errorf("first chunk = %+v", chunks[0])
	}
	if !errors.Is(chunks[1].Err, streamErr) {
		t.Errorf("error chunk = %+v", chunks[1])
	}
	if hookErr == nil || hookErr.Kind != KindProviderError {
		t.Errorf("OnError got %v", hookErr)
	}
	if afterCalled {
		t.Error("AfterRequest must not fire on a failed stream")
	}
}

func TestChatStream_RequiresStreamingCapableModel(t *testing.T) {
	p := &completerProvider{name: "openai"}
	m := testChatModel("no-stream", "openai")
	m.Capabilities = models.CapabilitySet{models.CapChat}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{m},
	})

	_, err := r.ChatStream(context.Background(), chatReq("hi"))
	if !errors.Is(err, &Error{Kind: KindNoModelFound}) {
		t.Errorf("expected no-model-found, got %v", err)
	}
}

func TestAnalyzeImage_DispatchUnsupported(t *testing.T) {
	// The provider can chat but has no analysis surface; the model advertises
	// vision so selection passes and the ladder is exhausted at dispatch.
	p := &completerProvider{name: "openai"}
	m := testChatModel("gpt-4o", "openai")
	m.Capabilities = m.Capabilities.Add(models.CapVision)
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{m},
	})

	_, err := r.AnalyzeImage(context.Background(), providers.ImageAnalysisRequest{
		Prompt: "what is this",
		Images: []providers.ContentPart{{Type: providers.PartImage, URL: "https://example.com/x.png"}},
	})
	if !errors.Is(err, &Error{Kind: KindDispatchUnsupported}) {
		t.Errorf("expected dispatch-unsupported, got %v", err)
	}
}

// analyzerProvider implements only the image analysis surface.
type analyzerProvider struct{ name string }

func (p *analyzerProvider) Name() string                          { return p.name }
func (p *analyzerProvider) Priority() int                         { return providers.DefaultPriority }
func (p *analyzerProvider) CheckHealth(ctx context.Context) error { return nil }

func (p *analyzerProvider) AnalyzeImage(ctx context.Context, req providers.ImageAnalysisRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{
		Model:   req.Model,
		Message: providers.Message{Role: providers.RoleAssistant, Content: "a cat"},
	}, nil
}

func TestAnalyzeImage_AnalyzerOnlyProvider(t *testing.T) {
	// Analysis answers are chat-shaped, so an analyze-only provider counts
	// as chat-capable and can win the image-analyze selection.
	p := &analyzerProvider{name: "visionco"}
	m := models.ModelInfo{
		ID: "looker-1", Provider: "visionco", ContextWindow: 32000,
		Capabilities: models.CapabilitySet{models.CapChat, models.CapVision},
	}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{m},
	})

	resp, err := r.AnalyzeImage(context.Background(), providers.ImageAnalysisRequest{
		Prompt: "what is this",
		Images: []providers.ContentPart{{Type: providers.PartImage, URL: "https://example.com/x.png"}},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if resp.Model != "looker-1" || resp.Message.Content != "a cat" {
		t.Errorf("response = %+v", resp)
	}
}

func TestBreaker_OpensAfterProviderErrors(t *testing.T) {
	p := &completerProvider{name: "openai", chatErr: errors.New("upstream down")}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Breaker:   &BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Minute},
	})

	for i := 0; i < 2; i++ {
		if _, err := r.Chat(context.Background(), chatReq("hi")); !errors.Is(err, &Error{Kind: KindProviderError}) {
			t.Fatalf("expected provider error, got %v", err)
		}
	}

	// The breaker is open; the only provider is excluded from selection.
	_, err := r.Chat(context.Background(), chatReq("hi"))
	if !errors.Is(err, &Error{Kind: KindNoModelFound}) {
		t.Fatalf("expected no-model-found while open, got %v", err)
	}
	if p.chatCalls != 2 {
		t.Errorf("provider calls = %d, want 2: no dispatch while open", p.chatCalls)
	}

	// An explicit pin bypasses the breaker.
	pinned := chatReq("hi")
	pinned.Model = "openai/gpt-4o"
	if _, err := r.Chat(context.Background(), pinned); !errors.Is(err, &Error{Kind: KindProviderError}) {
		t.Fatalf("expected provider error on pinned dispatch, got %v", err)
	}
	if p.chatCalls != 3 {
		t.Errorf("provider calls = %d, want 3 after the pinned call", p.chatCalls)
	}
}

func TestEmbed(t *testing.T) {
	p := &completerProvider{name: "openai"}
	m := models.ModelInfo{
		ID: "text-embedding-3-small", Provider: "openai", ContextWindow: 8191,
		Capabilities: models.CapabilitySet{models.CapEmbedding},
	}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{m},
	})

	resp, err := r.Embed(context.Background(), providers.EmbeddingRequest{Input: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if resp.Model != "text-embedding-3-small" || len(resp.Embeddings) != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHooks_InvocationOrderAndOverride(t *testing.T) {
	p := &completerProvider{name: "openai"}
	cheap := testChatModel("cheap", "openai")
	pinned := testChatModel("forced", "openai")
	var order []string

	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{cheap, pinned},
		Hooks: Hooks{
			BeforeModelSelection: func(ctx context.Context, md *models.Metadata) error {
				order = append(order, "beforeSelection")
				return nil
			},
			OnModelSelected: func(ctx context.Context, sel *registry.SelectedModel) (*registry.SelectedModel, error) {
				order = append(order, "onSelected")
				return &registry.SelectedModel{Model: pinned, Provider: p, Score: 1}, nil
			},
			BeforeRequest: func(ctx context.Context, sel *registry.SelectedModel, estimated models.Usage, estCost float64) error {
				order = append(order, "beforeRequest")
				if sel.Model.ID != "forced" {
					t.Errorf("BeforeRequest saw %q, want the override", sel.Model.ID)
				}
				return nil
			},
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				order = append(order, "afterRequest")
			},
		},
	})

	if _, err := r.Chat(context.Background(), chatReq("hi")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	want := []string{"beforeSelection", "onSelected", "beforeRequest", "afterRequest"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	// The override's id is what gets dispatched.
	if p.lastChat.Model != "forced" {
		t.Errorf("dispatched model = %q", p.lastChat.Model)
	}
}

func TestHooks_BeforeRequestVeto(t *testing.T) {
	p := &completerProvider{name: "openai"}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			BeforeRequest: func(ctx context.Context, sel *registry.SelectedModel, estimated models.Usage, estCost float64) error {
				return errors.New("over budget")
			},
		},
	})

	_, err := r.Chat(context.Background(), chatReq("hi"))
	if !errors.Is(err, &Error{Kind: KindValidationFailed}) {
		t.Errorf("expected validation-failed, got %v", err)
	}
	if p.lastChat.Model != "" {
		t.Error("provider must not be called after a veto")
	}
}

func TestHooks_BeforeModelSelectionMutatesMetadata(t *testing.T) {
	p := &completerProvider{name: "openai"}
	flagship := testChatModel("big", "openai")
	flagship.Tier = models.TierFlagship
	efficient := testChatModel("small", "openai")
	efficient.Tier = models.TierEfficient
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{flagship, efficient},
		Hooks: Hooks{
			BeforeModelSelection: func(ctx context.Context, md *models.Metadata) error {
				md.Tier = models.TierEfficient
				return nil
			},
		},
	})

	if _, err := r.Chat(context.Background(), chatReq("hi")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if p.lastChat.Model != "small" {
		t.Errorf("tier constraint ignored, dispatched %q", p.lastChat.Model)
	}
}

func TestUsage_ResponseCostWins(t *testing.T) {
	p := &completerProvider{
		name: "openai",
		chatUsage: &models.Usage{
			Text: &models.TokenUsage{Input: 100, Output: 50},
			Cost: ptr(0.5),
		},
	}
	var gotCost float64
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				gotCost = cost
			},
		},
	})

	if _, err := r.Chat(context.Background(), chatReq("hi")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if gotCost != 0.5 {
		t.Errorf("cost = %v, want the provider-reported 0.5", gotCost)
	}
}

func TestUsage_PricedFromTableWhenNoCost(t *testing.T) {
	p := &completerProvider{
		name:      "openai",
		chatUsage: &models.Usage{Text: &models.TokenUsage{Input: 1_000_000, Output: 0}},
	}
	var gotCost float64
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p},
		Models:    []models.ModelInfo{testChatModel("gpt-4o", "openai")},
		Hooks: Hooks{
			AfterRequest: func(ctx context.Context, sel *registry.SelectedModel, usage models.Usage, cost float64) {
				gotCost = cost
			},
		},
	})

	if _, err := r.Chat(context.Background(), chatReq("hi")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	// 1M input tokens at $2 per million.
	if gotCost != 2 {
		t.Errorf("cost = %v, want 2", gotCost)
	}
}

func TestRequestOptions_MetadataConstrainsSelection(t *testing.T) {
	p := &completerProvider{name: "openai"}
	other := &completerProvider{name: "bedrock"}
	r := mustRouter(t, Config{
		Providers: []providers.Provider{p, other},
		Models: []models.ModelInfo{
			testChatModel("gpt-4o", "openai"),
			testChatModel("claude", "bedrock"),
		},
	})

	_, err := r.Chat(context.Background(), chatReq("hi"),
		WithMetadata(models.Metadata{Providers: models.ProviderFilter{Excluded: []string{"openai"}}}))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if other.lastChat.Model != "claude" {
		t.Errorf("exclusion ignored, bedrock saw %q", other.lastChat.Model)
	}
	if p.lastChat.Model != "" {
		t.Error("excluded provider was dispatched")
	}
}
