package tokens

import (
	"strings"
	"testing"

	"github.com/ferro-labs/model-router/providers"
)

func TestTokensFor(t *testing.T) {
	tests := []struct {
		n       int
		divisor float64
		want    int
	}{
		{0, 4, 0},
		{-1, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{100, 4, 25},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := tokensFor(tt.n, tt.divisor); got != tt.want {
			t.Errorf("tokensFor(%d, %v) = %d, want %d", tt.n, tt.divisor, got, tt.want)
		}
	}
}

func TestNew_FillsZeroModalities(t *testing.T) {
	e := New(Divisors{Text: ModalityDivisors{Chars: 2}})
	if e.div.Text.Chars != 2 {
		t.Errorf("custom text divisor lost: %v", e.div.Text)
	}
	def := DefaultDivisors()
	if e.div.Image != def.Image || e.div.Audio != def.Audio || e.div.File != def.File {
		t.Error("untouched modalities should fall back to defaults")
	}
}

func TestChat_TextAndOverhead(t *testing.T) {
	e := New(Divisors{})
	usage := e.Chat(providers.ChatRequest{Messages: []providers.Message{
		// "user" -> 1 token overhead, 8 chars of content -> 2 tokens.
		{Role: "user", Content: "12345678"},
	}})
	if usage.Text == nil || usage.Text.Input != 3 {
		t.Errorf("text input = %+v, want 3", usage.Text)
	}
	if usage.Image != nil || usage.Audio != nil {
		t.Error("no media parts, so no media usage expected")
	}
}

func TestChat_PreCountedTokensWin(t *testing.T) {
	e := New(Divisors{})
	usage := e.Chat(providers.ChatRequest{Messages: []providers.Message{
		{Role: "user", Content: strings.Repeat("x", 4000), Tokens: 42},
	}})
	if usage.Text == nil || usage.Text.Input != 42 {
		t.Errorf("pre-counted message should bill exactly its count, got %+v", usage.Text)
	}
}

func TestChat_ToolsCounted(t *testing.T) {
	e := New(Divisors{})
	req := providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
		Tools: []providers.Tool{{
			Name:        "get_weather",
			Description: "Look up the weather",
			Parameters:  []byte(`{"type":"object","properties":{"city":{"type":"string"}}}`),
		}},
	}
	base := e.Chat(providers.ChatRequest{Messages: req.Messages})
	withTools := e.Chat(req)
	if withTools.Text.Input <= base.Text.Input {
		t.Errorf("tool schema not billed: %d vs %d", withTools.Text.Input, base.Text.Input)
	}
}

func TestChat_MediaParts(t *testing.T) {
	e := New(Divisors{})
	payload := strings.Repeat("A", 3000)
	usage := e.Chat(providers.ChatRequest{Messages: []providers.Message{{
		Role: "user",
		Parts: []providers.ContentPart{
			{Type: providers.PartImage, URL: "data:image/png;base64," + payload},
			{Type: providers.PartAudio, Data: make([]byte, 300)},
		},
	}}})

	// 3000 base64 chars at divisor 1500.
	if usage.Image == nil || usage.Image.Input != 2 {
		t.Errorf("image input = %+v, want 2", usage.Image)
	}
	// 300 raw bytes at divisor 3.
	if usage.Audio == nil || usage.Audio.Input != 100 {
		t.Errorf("audio input = %+v, want 100", usage.Audio)
	}
}

func TestChat_RemoteImageUsesFallback(t *testing.T) {
	e := New(Divisors{})
	usage := e.Chat(providers.ChatRequest{Messages: []providers.Message{{
		Role: "user",
		Parts: []providers.ContentPart{
			{Type: providers.PartImage, URL: "https://example.com/cat.png"},
		},
	}}})
	if usage.Image == nil || usage.Image.Input != DefaultDivisors().Image.Fallback {
		t.Errorf("remote image input = %+v, want fallback", usage.Image)
	}
}

func TestChat_ImageCapApplies(t *testing.T) {
	e := New(Divisors{})
	huge := "data:image/png;base64," + strings.Repeat("A", 10_000_000)
	usage := e.Chat(providers.ChatRequest{Messages: []providers.Message{{
		Role:  "user",
		Parts: []providers.ContentPart{{Type: providers.PartImage, URL: huge}},
	}}})
	if usage.Image == nil || usage.Image.Input != DefaultDivisors().Image.Cap {
		t.Errorf("image input = %+v, want cap", usage.Image)
	}
}

func TestEmbedding(t *testing.T) {
	e := New(Divisors{})
	usage := e.Embedding(providers.EmbeddingRequest{
		Input: []string{"12345678", "1234"},
	})
	if usage.Embeddings == nil {
		t.Fatal("no embedding usage")
	}
	if usage.Embeddings.Count != 2 || usage.Embeddings.Tokens != 3 {
		t.Errorf("embeddings = %+v", usage.Embeddings)
	}
}

func TestTranscription(t *testing.T) {
	e := New(Divisors{})
	usage := e.Transcription(providers.TranscriptionRequest{Audio: make([]byte, 300)})
	if usage.Audio == nil || usage.Audio.Input != 100 {
		t.Errorf("audio input = %+v, want 100", usage.Audio)
	}
	if got := e.Transcription(providers.TranscriptionRequest{}); got.Audio != nil {
		t.Error("empty audio should produce no usage")
	}
}

func TestSpeechAndImagePrompts(t *testing.T) {
	e := New(Divisors{})
	if got := e.Speech(providers.SpeechRequest{Input: "12345678"}); got.Text == nil || got.Text.Input != 2 {
		t.Errorf("speech usage = %+v", got.Text)
	}
	if got := e.Image(providers.ImageRequest{Prompt: "12345678"}); got.Text == nil || got.Text.Input != 2 {
		t.Errorf("image usage = %+v", got.Text)
	}
	if got := e.Image(providers.ImageRequest{}); got.Text != nil {
		t.Error("empty prompt should produce no usage")
	}
}
