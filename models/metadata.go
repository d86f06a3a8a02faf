package models

// Weights are the scoring axis weights used by the selection engine. Each
// axis is optional; defined axes conventionally sum to at most 1.
type Weights struct {
	Cost          *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
	Speed         *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
	Accuracy      *float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	ContextWindow *float64 `json:"context_window,omitempty" yaml:"context_window,omitempty"`
}

// Budget caps what a request may cost. MaxCostPerRequest is absolute USD;
// MaxCostPerMillionTokens caps the model's average text price.
type Budget struct {
	MaxCostPerRequest       *float64 `json:"max_cost_per_request,omitempty" yaml:"max_cost_per_request,omitempty"`
	MaxCostPerMillionTokens *float64 `json:"max_cost_per_million_tokens,omitempty" yaml:"max_cost_per_million_tokens,omitempty"`
}

// ProviderFilter restricts which providers may serve a request. Preferred
// and Excluded accumulate across metadata merges; the effective allow list
// is Preferred minus Excluded.
type ProviderFilter struct {
	Preferred []string `json:"preferred,omitempty" yaml:"preferred,omitempty"`
	Excluded  []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Allow returns the effective allow list: Preferred minus Excluded. An empty
// result with a non-empty Preferred still means "allow nothing else".
func (f ProviderFilter) Allow() []string {
	if len(f.Preferred) == 0 {
		return nil
	}
	out := make([]string, 0, len(f.Preferred))
	for _, p := range f.Preferred {
		if !containsString(f.Excluded, p) {
			out = append(out, p)
		}
	}
	return out
}

// Deny returns the effective deny list.
func (f ProviderFilter) Deny() []string { return f.Excluded }

// Metadata is the per-request selection metadata merged by the assembler and
// consumed by the selection engine. The zero value imposes no constraints.
type Metadata struct {
	// Model pins an explicit model identifier ("id" or "provider/id") and
	// bypasses scoring.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	Required           CapabilitySet `json:"required,omitempty" yaml:"required,omitempty"`
	Optional           CapabilitySet `json:"optional,omitempty" yaml:"optional,omitempty"`
	RequiredParameters ParameterSet  `json:"required_parameters,omitempty" yaml:"required_parameters,omitempty"`
	OptionalParameters ParameterSet  `json:"optional_parameters,omitempty" yaml:"optional_parameters,omitempty"`

	Providers ProviderFilter `json:"providers,omitempty" yaml:"providers,omitempty"`
	Budget    *Budget        `json:"budget,omitempty" yaml:"budget,omitempty"`
	Weights   *Weights       `json:"weights,omitempty" yaml:"weights,omitempty"`

	MinContextWindow int    `json:"min_context_window,omitempty" yaml:"min_context_window,omitempty"`
	Tier             Tier   `json:"tier,omitempty" yaml:"tier,omitempty"`
	WeightProfile    string `json:"weight_profile,omitempty" yaml:"weight_profile,omitempty"`

	// Constraint fields: later wins.
	Pricing       *Pricing `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	ContextWindow int      `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	OutputTokens  int      `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
	Metrics       *Metrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Extra carries free-form fields; later wins key by key.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// MergeMetadata merges over onto base under the field-specific rules:
// capability/parameter sets union, provider preferred/excluded union,
// weight axes take the arithmetic mean of defined values (merged pairwise,
// so a three-way merge is mean(mean(a,b),c)), budget.maxCostPerRequest takes
// the min and maxCostPerMillionTokens the max, everything else later-wins
// with undefined values never overwriting defined ones.
func MergeMetadata(base, over Metadata) Metadata {
	out := base
	if over.Model != "" {
		out.Model = over.Model
	}
	out.Required = base.Required.Union(over.Required)
	out.Optional = base.Optional.Union(over.Optional)
	out.RequiredParameters = base.RequiredParameters.Union(over.RequiredParameters)
	out.OptionalParameters = base.OptionalParameters.Union(over.OptionalParameters)
	out.Providers = ProviderFilter{
		Preferred: unionStrings(base.Providers.Preferred, over.Providers.Preferred),
		Excluded:  unionStrings(base.Providers.Excluded, over.Providers.Excluded),
	}
	out.Budget = mergeBudget(base.Budget, over.Budget)
	out.Weights = meanWeights(base.Weights, over.Weights)
	if over.MinContextWindow > 0 {
		out.MinContextWindow = over.MinContextWindow
	}
	if over.Tier != "" {
		out.Tier = over.Tier
	}
	if over.WeightProfile != "" {
		out.WeightProfile = over.WeightProfile
	}
	if over.Pricing != nil {
		out.Pricing = over.Pricing
	}
	if over.ContextWindow > 0 {
		out.ContextWindow = over.ContextWindow
	}
	if over.OutputTokens > 0 {
		out.OutputTokens = over.OutputTokens
	}
	if over.Metrics != nil {
		out.Metrics = over.Metrics
	}
	out.Extra = mergeMap(base.Extra, over.Extra)
	return out
}

func mergeBudget(base, over *Budget) *Budget {
	if over == nil {
		return base
	}
	if base == nil {
		cp := *over
		return &cp
	}
	out := *base
	// Per-request cap tightens: take the minimum of defined values.
	if over.MaxCostPerRequest != nil {
		if out.MaxCostPerRequest == nil || *over.MaxCostPerRequest < *out.MaxCostPerRequest {
			out.MaxCostPerRequest = over.MaxCostPerRequest
		}
	}
	// Per-million cap loosens: take the maximum of defined values.
	if over.MaxCostPerMillionTokens != nil {
		if out.MaxCostPerMillionTokens == nil || *over.MaxCostPerMillionTokens > *out.MaxCostPerMillionTokens {
			out.MaxCostPerMillionTokens = over.MaxCostPerMillionTokens
		}
	}
	return &out
}

func meanWeights(base, over *Weights) *Weights {
	if over == nil {
		return base
	}
	if base == nil {
		cp := *over
		return &cp
	}
	return &Weights{
		Cost:          meanPtr(base.Cost, over.Cost),
		Speed:         meanPtr(base.Speed, over.Speed),
		Accuracy:      meanPtr(base.Accuracy, over.Accuracy),
		ContextWindow: meanPtr(base.ContextWindow, over.ContextWindow),
	}
}

func meanPtr(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		m := (*a + *b) / 2
		return &m
	}
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !containsString(out, s) {
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !containsString(out, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
