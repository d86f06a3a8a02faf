package models

import (
	"fmt"
	"regexp"
)

// Override is a patch applied to every registered model whose matcher
// matches. All provided matcher fields must match; ModelPattern is a regular
// expression tested against the bare model id.
type Override struct {
	Provider     string `json:"provider,omitempty" yaml:"provider,omitempty"`
	ModelID      string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	ModelPattern string `json:"model_pattern,omitempty" yaml:"model_pattern,omitempty"`

	Overrides ModelPatch `json:"overrides" yaml:"overrides"`

	pattern *regexp.Regexp
}

// ModelPatch is the payload deep-merged into a matching ModelInfo. Zero
// values leave the corresponding field untouched.
type ModelPatch struct {
	DisplayName         string         `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Capabilities        CapabilitySet  `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	SupportedParameters ParameterSet   `json:"supported_parameters,omitempty" yaml:"supported_parameters,omitempty"`
	Tier                Tier           `json:"tier,omitempty" yaml:"tier,omitempty"`
	ContextWindow       int            `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	MaxOutputTokens     int            `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	Pricing             *Pricing       `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	Metrics             *Metrics       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tokenizer           string         `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Compile validates and caches the ModelPattern regular expression. It is
// called once when the override is installed.
func (o *Override) Compile() error {
	if o.ModelPattern == "" {
		o.pattern = nil
		return nil
	}
	re, err := regexp.Compile(o.ModelPattern)
	if err != nil {
		return fmt.Errorf("override pattern %q: %w", o.ModelPattern, err)
	}
	o.pattern = re
	return nil
}

// Matches reports whether every provided matcher field matches m.
func (o *Override) Matches(m ModelInfo) bool {
	if o.Provider != "" && o.Provider != m.Provider {
		return false
	}
	if o.ModelID != "" && o.ModelID != m.ID {
		return false
	}
	if o.ModelPattern != "" {
		re := o.pattern
		if re == nil {
			var err error
			re, err = regexp.Compile(o.ModelPattern)
			if err != nil {
				return false
			}
		}
		if !re.MatchString(m.ID) {
			return false
		}
	}
	return o.Provider != "" || o.ModelID != "" || o.ModelPattern != ""
}

// Apply deep-merges the override payload into m. Applying the same override
// twice yields the same result.
func (o *Override) Apply(m ModelInfo) ModelInfo {
	p := o.Overrides
	out := m
	if p.DisplayName != "" {
		out.DisplayName = p.DisplayName
	}
	out.Capabilities = m.Capabilities.Union(p.Capabilities)
	out.SupportedParameters = m.SupportedParameters.Union(p.SupportedParameters)
	if p.Tier != "" {
		out.Tier = p.Tier
	}
	if p.ContextWindow > 0 {
		out.ContextWindow = p.ContextWindow
	}
	if p.MaxOutputTokens > 0 {
		out.MaxOutputTokens = p.MaxOutputTokens
	}
	if p.Pricing != nil {
		out.Pricing = mergePricing(m.Pricing, *p.Pricing)
	}
	if p.Metrics != nil {
		out.Metrics = mergeMetrics(m.Metrics, p.Metrics)
	}
	if p.Tokenizer != "" {
		out.Tokenizer = p.Tokenizer
	}
	if len(p.Metadata) > 0 {
		out.Metadata = mergeMap(m.Metadata, p.Metadata)
	}
	return out
}
