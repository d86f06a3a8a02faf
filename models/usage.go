package models

// Usage mirrors Pricing: a per-modality record of billable units consumed by
// one request. Cost is set when the provider already computed the total; the
// pipeline then skips its own calculation.
type Usage struct {
	Text       *TokenUsage     `json:"text,omitempty" yaml:"text,omitempty"`
	Reasoning  *TokenUsage     `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Embeddings *EmbeddingUsage `json:"embeddings,omitempty" yaml:"embeddings,omitempty"`
	Audio      *AudioUsage     `json:"audio,omitempty" yaml:"audio,omitempty"`
	Image      *ImageUsage     `json:"image,omitempty" yaml:"image,omitempty"`
	Cost       *float64        `json:"cost,omitempty" yaml:"cost,omitempty"`
}

// TokenUsage counts tokens on one stream.
type TokenUsage struct {
	Input  int `json:"input,omitempty" yaml:"input,omitempty"`
	Output int `json:"output,omitempty" yaml:"output,omitempty"`
	Cached int `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// EmbeddingUsage counts produced vectors and consumed tokens.
type EmbeddingUsage struct {
	Count  int `json:"count,omitempty" yaml:"count,omitempty"`
	Tokens int `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// AudioUsage counts audio duration and audio tokens.
type AudioUsage struct {
	Seconds float64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Input   int     `json:"input,omitempty" yaml:"input,omitempty"`
	Output  int     `json:"output,omitempty" yaml:"output,omitempty"`
}

// ImageUsage counts image input tokens and generated images.
type ImageUsage struct {
	Input  int                `json:"input,omitempty" yaml:"input,omitempty"`
	Output []ImageOutputUsage `json:"output,omitempty" yaml:"output,omitempty"`
}

// ImageOutputUsage counts generated images at one quality and size.
type ImageOutputUsage struct {
	Quality string `json:"quality,omitempty" yaml:"quality,omitempty"`
	Width   int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height  int    `json:"height,omitempty" yaml:"height,omitempty"`
	Count   int    `json:"count,omitempty" yaml:"count,omitempty"`
}

// InputTokens returns the total input-side token count across modalities.
func (u Usage) InputTokens() int {
	n := 0
	if u.Text != nil {
		n += u.Text.Input + u.Text.Cached
	}
	if u.Reasoning != nil {
		n += u.Reasoning.Input
	}
	if u.Embeddings != nil {
		n += u.Embeddings.Tokens
	}
	if u.Audio != nil {
		n += u.Audio.Input
	}
	if u.Image != nil {
		n += u.Image.Input
	}
	return n
}

// OutputTokens returns the total output-side token count across modalities.
func (u Usage) OutputTokens() int {
	n := 0
	if u.Text != nil {
		n += u.Text.Output
	}
	if u.Reasoning != nil {
		n += u.Reasoning.Output
	}
	if u.Audio != nil {
		n += u.Audio.Output
	}
	return n
}

// Accumulate folds a streaming chunk's partial usage into u. Providers emit
// growing cumulative figures, so each field takes the last seen value, with
// max as the tiebreaker when a chunk reports a smaller number.
func (u *Usage) Accumulate(chunk Usage) {
	if chunk.Text != nil {
		if u.Text == nil {
			u.Text = &TokenUsage{}
		}
		u.Text.Input = maxInt(u.Text.Input, chunk.Text.Input)
		u.Text.Output = maxInt(u.Text.Output, chunk.Text.Output)
		u.Text.Cached = maxInt(u.Text.Cached, chunk.Text.Cached)
	}
	if chunk.Reasoning != nil {
		if u.Reasoning == nil {
			u.Reasoning = &TokenUsage{}
		}
		u.Reasoning.Input = maxInt(u.Reasoning.Input, chunk.Reasoning.Input)
		u.Reasoning.Output = maxInt(u.Reasoning.Output, chunk.Reasoning.Output)
		u.Reasoning.Cached = maxInt(u.Reasoning.Cached, chunk.Reasoning.Cached)
	}
	if chunk.Embeddings != nil {
		if u.Embeddings == nil {
			u.Embeddings = &EmbeddingUsage{}
		}
		u.Embeddings.Count = maxInt(u.Embeddings.Count, chunk.Embeddings.Count)
		u.Embeddings.Tokens = maxInt(u.Embeddings.Tokens, chunk.Embeddings.Tokens)
	}
	if chunk.Audio != nil {
		if u.Audio == nil {
			u.Audio = &AudioUsage{}
		}
		if chunk.Audio.Seconds > u.Audio.Seconds {
			u.Audio.Seconds = chunk.Audio.Seconds
		}
		u.Audio.Input = maxInt(u.Audio.Input, chunk.Audio.Input)
		u.Audio.Output = maxInt(u.Audio.Output, chunk.Audio.Output)
	}
	if chunk.Image != nil {
		if u.Image == nil {
			u.Image = &ImageUsage{}
		}
		u.Image.Input = maxInt(u.Image.Input, chunk.Image.Input)
		if len(chunk.Image.Output) > 0 {
			u.Image.Output = chunk.Image.Output
		}
	}
	if chunk.Cost != nil {
		u.Cost = chunk.Cost
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
