// Package providers defines the dispatch contract between the router and
// backing AI providers: the Provider interface, the optional per-operation
// dispatch interfaces that determine a provider's capability set, and the
// neutral request/response/chunk shapes for every operation family.
//
// Concrete implementations in this package: OpenAI (openai-go SDK) and AWS
// Bedrock (aws-sdk-go-v2 bedrockruntime).
package providers

import (
	"encoding/json"
	"strings"

	"github.com/ferro-labs/model-router/models"
)

// Message role constants shared across operation families.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Content part type constants.
const (
	PartText  = "text"
	PartImage = "image_url"
	PartAudio = "input_audio"
	PartFile  = "file"
)

// ContentPart is a single element of a multipart message content array.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// URL holds an http(s) URL or a base64 data URI for image/file parts.
	URL string `json:"url,omitempty"`
	// Data holds raw bytes for audio/file parts delivered inline.
	Data []byte `json:"data,omitempty"`
	// MIMEType qualifies Data or URL when the format is not implied.
	MIMEType string `json:"mime_type,omitempty"`
	// Detail is the vision detail hint ("auto" | "low" | "high").
	Detail string `json:"detail,omitempty"`
}

// IsDataURI reports whether the part's URL is an inline base64 data URI.
func (p ContentPart) IsDataURI() bool {
	return strings.HasPrefix(p.URL, "data:")
}

// Tool describes a function the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"` // JSON Schema
	Strict      bool            `json:"strict,omitempty"`
}

// ToolCall is a function invocation returned by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// ResponseFormat instructs the model how to format its output.
// Type "json" requests JSON mode; a non-nil Schema requests structured
// output conforming to the given JSON Schema.
type ResponseFormat struct {
	Type   string          `json:"type,omitempty"` // "text" | "json"
	Schema json.RawMessage `json:"schema,omitempty"`
}

// Message is a single turn in a conversation. Content holds plain text;
// Parts is set for multimodal turns. Tokens, when positive, is a
// pre-counted token figure that overrides estimation for this message.
type Message struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	Name       string        `json:"name,omitempty"`
	Refusal    string        `json:"refusal,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Tokens     int           `json:"tokens,omitempty"`
}

// Text returns the message's plain-text content, concatenating text parts
// when the message is multipart.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	sb.WriteString(m.Content)
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ── Chat ─────────────────────────────────────────────────────────────────────

// ChatRequest is a neutral chat completion request.
type ChatRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`

	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`

	Tools          []Tool          `json:"tools,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Reason requests extended reasoning ("low" | "medium" | "high").
	// Presence implies the reasoning capability.
	Reason string `json:"reason,omitempty"`
}

// ChatResponse is a neutral chat completion response.
type ChatResponse struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Message Message       `json:"message"`
	Usage   *models.Usage `json:"usage,omitempty"`

	FinishReason string `json:"finish_reason,omitempty"`
}

// ChatChunk is an incremental piece of a streaming chat response.
type ChatChunk struct {
	ID           string        `json:"id,omitempty"`
	Model        string        `json:"model,omitempty"`
	Delta        string        `json:"delta,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Usage        *models.Usage `json:"usage,omitempty"`
	Err          error         `json:"-"` // non-nil signals a stream failure
}

// ── Embeddings ───────────────────────────────────────────────────────────────

// EmbeddingRequest asks for one vector per input string.
type EmbeddingRequest struct {
	Model      string   `json:"model,omitempty"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

// EmbeddingResponse carries the produced vectors in input order.
type EmbeddingResponse struct {
	Model      string        `json:"model,omitempty"`
	Embeddings [][]float64   `json:"embeddings"`
	Usage      *models.Usage `json:"usage,omitempty"`
}

// ── Image generation / editing ───────────────────────────────────────────────

// ImageSize is a requested output dimension.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageRequest is a neutral image generation request.
type ImageRequest struct {
	Model   string     `json:"model,omitempty"`
	Prompt  string     `json:"prompt"`
	N       int        `json:"n,omitempty"`
	Size    *ImageSize `json:"size,omitempty"`
	Quality string     `json:"quality,omitempty"`
	Style   string     `json:"style,omitempty"`
}

// ImageEditRequest edits or extends an existing image.
type ImageEditRequest struct {
	Model  string     `json:"model,omitempty"`
	Prompt string     `json:"prompt"`
	Image  []byte     `json:"image"`
	Mask   []byte     `json:"mask,omitempty"`
	N      int        `json:"n,omitempty"`
	Size   *ImageSize `json:"size,omitempty"`
}

// GeneratedImage is one produced image, as a URL or inline bytes.
type GeneratedImage struct {
	URL           string `json:"url,omitempty"`
	Data          []byte `json:"data,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ImageResponse carries all produced images.
type ImageResponse struct {
	Model  string           `json:"model,omitempty"`
	Images []GeneratedImage `json:"images"`
	Usage  *models.Usage    `json:"usage,omitempty"`
}

// ImageChunk is one image of a streaming image response.
type ImageChunk struct {
	Model string          `json:"model,omitempty"`
	Image *GeneratedImage `json:"image,omitempty"`
	Usage *models.Usage   `json:"usage,omitempty"`
	Err   error           `json:"-"`
}

// ImageAnalysisRequest asks a vision model about one or more images.
type ImageAnalysisRequest struct {
	Model  string        `json:"model,omitempty"`
	Prompt string        `json:"prompt"`
	Images []ContentPart `json:"images"`

	MaxTokens *int `json:"max_tokens,omitempty"`
}

// ── Speech synthesis ─────────────────────────────────────────────────────────

// SpeechRequest synthesises speech from text.
type SpeechRequest struct {
	Model  string   `json:"model,omitempty"`
	Input  string   `json:"input"`
	Voice  string   `json:"voice,omitempty"`
	Format string   `json:"format,omitempty"` // "mp3" | "wav" | "opus" | ...
	Speed  *float64 `json:"speed,omitempty"`
}

// SpeechResponse carries the synthesised audio.
type SpeechResponse struct {
	Model    string        `json:"model,omitempty"`
	Audio    []byte        `json:"audio"`
	MIMEType string        `json:"mime_type,omitempty"`
	Usage    *models.Usage `json:"usage,omitempty"`
}

// ── Transcription ────────────────────────────────────────────────────────────

// TranscriptionRequest transcribes recorded audio.
type TranscriptionRequest struct {
	Model    string `json:"model,omitempty"`
	Audio    []byte `json:"audio"`
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// TranscriptionResponse carries the recognised text.
type TranscriptionResponse struct {
	Model string        `json:"model,omitempty"`
	Text  string        `json:"text"`
	Usage *models.Usage `json:"usage,omitempty"`
}

// TranscriptionChunk is an incremental piece of a streaming transcription.
type TranscriptionChunk struct {
	Model string        `json:"model,omitempty"`
	Delta string        `json:"delta,omitempty"`
	Usage *models.Usage `json:"usage,omitempty"`
	Err   error         `json:"-"`
}
