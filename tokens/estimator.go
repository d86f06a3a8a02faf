// Package tokens approximates billable token counts for operation inputs.
// The estimates feed pre-dispatch cost projection and budget hooks; realized
// usage always comes from the provider response when available.
package tokens

import (
	"encoding/json"
	"strings"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

// ModalityDivisors controls how one input modality converts to tokens.
type ModalityDivisors struct {
	// Chars divides plain content length (characters or raw bytes).
	Chars float64
	// Base64 divides base64-encoded payload length.
	Base64 float64
	// Fallback is the fixed token estimate for content whose size cannot be
	// measured, such as a remote URL.
	Fallback int
	// Cap bounds the estimate per item; zero means no cap.
	Cap int
}

// Divisors holds the per-modality conversion settings.
type Divisors struct {
	Text  ModalityDivisors
	Image ModalityDivisors
	File  ModalityDivisors
	Audio ModalityDivisors
}

// DefaultDivisors returns the stock conversion table.
func DefaultDivisors() Divisors {
	return Divisors{
		Text:  ModalityDivisors{Chars: 4, Base64: 3, Fallback: 1000},
		Image: ModalityDivisors{Chars: 1125, Base64: 1500, Fallback: 1360, Cap: 1360},
		File:  ModalityDivisors{Chars: 3, Base64: 4, Fallback: 1000},
		Audio: ModalityDivisors{Chars: 3, Base64: 4, Fallback: 200},
	}
}

// Estimator converts operation inputs to Usage records. The zero value is
// not usable; construct with New.
type Estimator struct {
	div Divisors
}

// New creates an estimator. Zero-valued modalities in d fall back to the
// defaults, so callers can tune a single modality without restating the
// rest.
func New(d Divisors) *Estimator {
	def := DefaultDivisors()
	if d.Text == (ModalityDivisors{}) {
		d.Text = def.Text
	}
	if d.Image == (ModalityDivisors{}) {
		d.Image = def.Image
	}
	if d.File == (ModalityDivisors{}) {
		d.File = def.File
	}
	if d.Audio == (ModalityDivisors{}) {
		d.Audio = def.Audio
	}
	return &Estimator{div: d}
}

// tokensFor divides n content units by a divisor, rounding up, with a
// minimum of one token for non-empty content.
func tokensFor(n int, divisor float64) int {
	if n <= 0 || divisor <= 0 {
		return 0
	}
	t := int(float64(n)/divisor + 0.999999)
	if t < 1 {
		t = 1
	}
	return t
}

func capTokens(t, cap int) int {
	if cap > 0 && t > cap {
		return cap
	}
	return t
}

func (e *Estimator) textTokens(s string) int {
	return tokensFor(len(s), e.div.Text.Chars)
}

// Chat estimates the input usage of a chat request. Messages carrying a
// pre-counted token figure use it directly as text input.
func (e *Estimator) Chat(req providers.ChatRequest) models.Usage {
	var text, image, audio int
	for _, msg := range req.Messages {
		if msg.Tokens > 0 {
			text += msg.Tokens
			continue
		}
		text += e.messageOverheadTokens(msg)
		text += e.textTokens(msg.Content)
		for _, part := range msg.Parts {
			t, i, a := e.partTokens(part)
			text += t
			image += i
			audio += a
		}
	}
	for _, tool := range req.Tools {
		text += e.textTokens(tool.Name) + e.textTokens(tool.Description)
		text += tokensFor(len(tool.Parameters), e.div.Text.Chars)
	}

	usage := models.Usage{}
	if text > 0 {
		usage.Text = &models.TokenUsage{Input: text}
	}
	if image > 0 {
		usage.Image = &models.ImageUsage{Input: image}
	}
	if audio > 0 {
		usage.Audio = &models.AudioUsage{Input: audio}
	}
	return usage
}

// messageOverheadTokens counts the structural fields billed alongside the
// content: role, name, refusal, tool call id, and serialized tool calls.
func (e *Estimator) messageOverheadTokens(msg providers.Message) int {
	n := e.textTokens(msg.Role)
	n += e.textTokens(msg.Name)
	n += e.textTokens(msg.Refusal)
	n += e.textTokens(msg.ToolCallID)
	if len(msg.ToolCalls) > 0 {
		if raw, err := json.Marshal(msg.ToolCalls); err == nil {
			n += tokensFor(len(raw), e.div.Text.Chars)
		}
	}
	return n
}

// partTokens classifies one content part and returns its contribution to
// (text, image, audio) input tokens. File tokens fold into text.
func (e *Estimator) partTokens(part providers.ContentPart) (text, image, audio int) {
	switch part.Type {
	case providers.PartText:
		return e.textTokens(part.Text), 0, 0
	case providers.PartImage:
		return 0, e.mediaTokens(part, e.div.Image), 0
	case providers.PartAudio:
		return 0, 0, e.mediaTokens(part, e.div.Audio)
	case providers.PartFile:
		return e.mediaTokens(part, e.div.File), 0, 0
	default:
		return e.div.Text.Fallback, 0, 0
	}
}

// mediaTokens estimates one media part: data URIs by base64 length, raw
// bytes by the binary divisor, remote URLs by the modality fallback.
func (e *Estimator) mediaTokens(part providers.ContentPart, d ModalityDivisors) int {
	switch {
	case part.IsDataURI():
		payload := part.URL
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
		return capTokens(tokensFor(len(payload), d.Base64), d.Cap)
	case len(part.Data) > 0:
		return capTokens(tokensFor(len(part.Data), d.Chars), d.Cap)
	case part.URL != "":
		return d.Fallback
	default:
		return d.Fallback
	}
}

// Embedding estimates the input usage of an embedding request: one vector
// per input string, tokens from text length.
func (e *Estimator) Embedding(req providers.EmbeddingRequest) models.Usage {
	tokens := 0
	for _, s := range req.Input {
		tokens += e.textTokens(s)
	}
	return models.Usage{Embeddings: &models.EmbeddingUsage{
		Count:  len(req.Input),
		Tokens: tokens,
	}}
}

// Image estimates the input usage of an image generation request: the
// prompt bills as text.
func (e *Estimator) Image(req providers.ImageRequest) models.Usage {
	t := e.textTokens(req.Prompt)
	if t == 0 {
		return models.Usage{}
	}
	return models.Usage{Text: &models.TokenUsage{Input: t}}
}

// ImageEdit estimates the input usage of an image edit request: the prompt
// bills as text, the source image as image input.
func (e *Estimator) ImageEdit(req providers.ImageEditRequest) models.Usage {
	usage := models.Usage{}
	if t := e.textTokens(req.Prompt); t > 0 {
		usage.Text = &models.TokenUsage{Input: t}
	}
	if len(req.Image) > 0 {
		usage.Image = &models.ImageUsage{
			Input: capTokens(tokensFor(len(req.Image), e.div.Image.Chars), e.div.Image.Cap),
		}
	}
	return usage
}

// ImageAnalysis estimates the input usage of an image analysis request.
func (e *Estimator) ImageAnalysis(req providers.ImageAnalysisRequest) models.Usage {
	usage := models.Usage{}
	if t := e.textTokens(req.Prompt); t > 0 {
		usage.Text = &models.TokenUsage{Input: t}
	}
	image := 0
	for _, part := range req.Images {
		image += e.mediaTokens(part, e.div.Image)
	}
	if image > 0 {
		usage.Image = &models.ImageUsage{Input: image}
	}
	return usage
}

// Speech estimates the input usage of a speech synthesis request.
func (e *Estimator) Speech(req providers.SpeechRequest) models.Usage {
	t := e.textTokens(req.Input)
	if t == 0 {
		return models.Usage{}
	}
	return models.Usage{Text: &models.TokenUsage{Input: t}}
}

// Transcription estimates the input usage of a transcription request from
// the raw audio size.
func (e *Estimator) Transcription(req providers.TranscriptionRequest) models.Usage {
	if len(req.Audio) == 0 {
		return models.Usage{}
	}
	return models.Usage{Audio: &models.AudioUsage{
		Input: capTokens(tokensFor(len(req.Audio), e.div.Audio.Chars), e.div.Audio.Cap),
	}}
}
