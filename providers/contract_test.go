package providers

import (
	"context"
	"testing"

	"github.com/ferro-labs/model-router/models"
)

type baseProvider struct{ name string }

func (p baseProvider) Name() string                          { return p.name }
func (p baseProvider) Priority() int                         { return DefaultPriority }
func (p baseProvider) CheckHealth(ctx context.Context) error { return nil }

type chatOnlyProvider struct{ baseProvider }

func (chatOnlyProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{}, nil
}

type streamingChatProvider struct{ chatOnlyProvider }

func (streamingChatProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	ch := make(chan ChatChunk)
	close(ch)
	return ch, nil
}

type speechAndEarsProvider struct{ baseProvider }

func (speechAndEarsProvider) Speech(ctx context.Context, req SpeechRequest) (*SpeechResponse, error) {
	return &SpeechResponse{}, nil
}

func (speechAndEarsProvider) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	return &TranscriptionResponse{}, nil
}

type analyzerOnlyProvider struct{ baseProvider }

func (analyzerOnlyProvider) AnalyzeImage(ctx context.Context, req ImageAnalysisRequest) (*ChatResponse, error) {
	return &ChatResponse{}, nil
}

type streamingAnalyzerProvider struct{ analyzerOnlyProvider }

func (streamingAnalyzerProvider) AnalyzeImageStream(ctx context.Context, req ImageAnalysisRequest) (<-chan ChatChunk, error) {
	ch := make(chan ChatChunk)
	close(ch)
	return ch, nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		p       Provider
		want    models.CapabilitySet
		notWant models.CapabilitySet
	}{
		{
			name:    "bare provider",
			p:       baseProvider{name: "empty"},
			notWant: models.CapabilitySet{models.CapChat, models.CapStreaming, models.CapEmbedding},
		},
		{
			name:    "chat without streaming",
			p:       chatOnlyProvider{},
			want:    models.CapabilitySet{models.CapChat},
			notWant: models.CapabilitySet{models.CapStreaming},
		},
		{
			name: "chat with streaming",
			p:    streamingChatProvider{},
			want: models.CapabilitySet{models.CapChat, models.CapStreaming},
		},
		{
			name:    "image analysis without streaming",
			p:       analyzerOnlyProvider{},
			want:    models.CapabilitySet{models.CapChat},
			notWant: models.CapabilitySet{models.CapStreaming, models.CapImage},
		},
		{
			name: "image analysis with streaming",
			p:    streamingAnalyzerProvider{},
			want: models.CapabilitySet{models.CapChat, models.CapStreaming},
		},
		{
			name:    "speech and transcription",
			p:       speechAndEarsProvider{},
			want:    models.CapabilitySet{models.CapAudio, models.CapHearing},
			notWant: models.CapabilitySet{models.CapChat, models.CapStreaming},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.p)
			for _, c := range tt.want {
				if !got.Has(c) {
					t.Errorf("missing %s in %v", c, got)
				}
			}
			for _, c := range tt.notWant {
				if got.Has(c) {
					t.Errorf("unexpected %s in %v", c, got)
				}
			}
			// Model-level capabilities never gate a provider.
			for _, c := range models.ModelLevelCapabilities {
				if !got.Has(c) {
					t.Errorf("model-level capability %s missing", c)
				}
			}
		})
	}
}
