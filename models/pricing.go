package models

// Pricing holds all cost fields in USD, grouped by modality. Token prices are
// per 1M tokens. Each group is independently optional: nil means the modality
// is not applicable to this model, not that it is free. PerSecond and
// PerRequest are absolute USD amounts.
type Pricing struct {
	Text       *TokenPricing     `json:"text,omitempty" yaml:"text,omitempty"`
	Reasoning  *TokenPricing     `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Embeddings *EmbeddingPricing `json:"embeddings,omitempty" yaml:"embeddings,omitempty"`
	Audio      *AudioPricing     `json:"audio,omitempty" yaml:"audio,omitempty"`
	Image      *ImagePricing     `json:"image,omitempty" yaml:"image,omitempty"`
	PerRequest *float64          `json:"per_request,omitempty" yaml:"per_request,omitempty"`
}

// TokenPricing prices a token stream. Cached is the discounted rate for
// prompt-cache hits; when nil the input rate applies to cached tokens.
type TokenPricing struct {
	Input  *float64 `json:"input,omitempty" yaml:"input,omitempty"`
	Output *float64 `json:"output,omitempty" yaml:"output,omitempty"`
	Cached *float64 `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// EmbeddingPricing prices embedding generation per 1M input tokens.
type EmbeddingPricing struct {
	Cost *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
}

// AudioPricing prices audio input/output tokens per 1M and, independently,
// raw audio duration in absolute USD per second.
type AudioPricing struct {
	Input     *float64 `json:"input,omitempty" yaml:"input,omitempty"`
	Output    *float64 `json:"output,omitempty" yaml:"output,omitempty"`
	PerSecond *float64 `json:"per_second,omitempty" yaml:"per_second,omitempty"`
}

// ImagePricing prices image input tokens per 1M and generated images by
// quality and dimensions.
type ImagePricing struct {
	Input  *float64             `json:"input,omitempty" yaml:"input,omitempty"`
	Output []ImageOutputPricing `json:"output,omitempty" yaml:"output,omitempty"`
}

// ImageOutputPricing lists the per-image cost for each supported size at one
// quality level.
type ImageOutputPricing struct {
	Quality string          `json:"quality" yaml:"quality"`
	Sizes   []ImageSizeCost `json:"sizes" yaml:"sizes"`
}

// ImageSizeCost is the absolute USD cost of one generated image at the given
// dimensions.
type ImageSizeCost struct {
	Width  int     `json:"width" yaml:"width"`
	Height int     `json:"height" yaml:"height"`
	Cost   float64 `json:"cost" yaml:"cost"`
}

// mergePricing shallow-merges group by group with src winning where set.
func mergePricing(base, src Pricing) Pricing {
	out := base
	if src.Text != nil {
		out.Text = mergeTokenPricing(base.Text, src.Text)
	}
	if src.Reasoning != nil {
		out.Reasoning = mergeTokenPricing(base.Reasoning, src.Reasoning)
	}
	if src.Embeddings != nil {
		out.Embeddings = src.Embeddings
	}
	if src.Audio != nil {
		out.Audio = mergeAudioPricing(base.Audio, src.Audio)
	}
	if src.Image != nil {
		out.Image = src.Image
	}
	if src.PerRequest != nil {
		out.PerRequest = src.PerRequest
	}
	return out
}

func mergeTokenPricing(base, src *TokenPricing) *TokenPricing {
	if base == nil {
		cp := *src
		return &cp
	}
	out := *base
	if src.Input != nil {
		out.Input = src.Input
	}
	if src.Output != nil {
		out.Output = src.Output
	}
	if src.Cached != nil {
		out.Cached = src.Cached
	}
	return &out
}

func mergeAudioPricing(base, src *AudioPricing) *AudioPricing {
	if base == nil {
		cp := *src
		return &cp
	}
	out := *base
	if src.Input != nil {
		out.Input = src.Input
	}
	if src.Output != nil {
		out.Output = src.Output
	}
	if src.PerSecond != nil {
		out.PerSecond = src.PerSecond
	}
	return &out
}
