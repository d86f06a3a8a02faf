package models

// CostResult breaks down the total cost of a request by billing component.
// Every field is in USD.
type CostResult struct {
	TotalUSD      float64
	TextUSD       float64
	ReasoningUSD  float64
	EmbeddingUSD  float64
	AudioUSD      float64
	ImageUSD      float64
	PerRequestUSD float64
}

// perM converts a nullable price-per-million-tokens to a cost for n tokens.
// Returns 0 when price is nil (field not applicable) or n is 0.
func perM(price *float64, n int) float64 {
	if price == nil || n == 0 {
		return 0
	}
	return *price * float64(n) / 1_000_000
}

// tokenCost prices one token stream. Cached tokens bill at the cached rate
// when present, falling back to the input rate.
func tokenCost(p *TokenPricing, u *TokenUsage) float64 {
	if p == nil || u == nil {
		return 0
	}
	cost := perM(p.Input, u.Input) + perM(p.Output, u.Output)
	if p.Cached != nil {
		cost += perM(p.Cached, u.Cached)
	} else {
		cost += perM(p.Input, u.Cached)
	}
	return cost
}

// Calculate computes the full cost of usage against m's pricing. Overrides
// carrying a pricing patch are applied to a copy of the model first. Image
// output entries with no matching quality/size in the pricing table are
// skipped silently.
func Calculate(m ModelInfo, usage Usage, overrides []Override) CostResult {
	for i := range overrides {
		o := &overrides[i]
		if o.Overrides.Pricing != nil && o.Matches(m) {
			m.Pricing = mergePricing(m.Pricing, *o.Overrides.Pricing)
		}
	}
	p := m.Pricing

	var r CostResult
	r.TextUSD = tokenCost(p.Text, usage.Text)
	r.ReasoningUSD = tokenCost(p.Reasoning, usage.Reasoning)

	if p.Embeddings != nil && usage.Embeddings != nil {
		r.EmbeddingUSD = perM(p.Embeddings.Cost, usage.Embeddings.Tokens)
	}

	if p.Audio != nil && usage.Audio != nil {
		if p.Audio.PerSecond != nil && usage.Audio.Seconds > 0 {
			r.AudioUSD += *p.Audio.PerSecond * usage.Audio.Seconds
		}
		r.AudioUSD += perM(p.Audio.Input, usage.Audio.Input)
		r.AudioUSD += perM(p.Audio.Output, usage.Audio.Output)
	}

	if p.Image != nil && usage.Image != nil {
		r.ImageUSD += perM(p.Image.Input, usage.Image.Input)
		for _, out := range usage.Image.Output {
			if c, ok := imageOutputCost(p.Image.Output, out); ok {
				r.ImageUSD += c * float64(out.Count)
			}
		}
	}

	if p.PerRequest != nil {
		r.PerRequestUSD = *p.PerRequest
	}

	r.TotalUSD = r.TextUSD + r.ReasoningUSD + r.EmbeddingUSD + r.AudioUSD + r.ImageUSD + r.PerRequestUSD
	return r
}

// imageOutputCost looks up the per-image cost for the given quality and size.
func imageOutputCost(table []ImageOutputPricing, out ImageOutputUsage) (float64, bool) {
	for _, q := range table {
		if q.Quality != out.Quality {
			continue
		}
		for _, s := range q.Sizes {
			if s.Width == out.Width && s.Height == out.Height {
				return s.Cost, true
			}
		}
	}
	return 0, false
}
