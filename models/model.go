// Package models defines the neutral model vocabulary shared by the router:
// ModelInfo with its capability and parameter tags, per-modality pricing and
// usage records, performance metrics, selection metadata, overrides, and the
// cost calculator.
//
// The package has no dependency on providers or the router itself so it can
// be imported independently (e.g. by catalog tooling).
package models

import (
	"errors"
	"fmt"
	"time"
)

// Capability tags a feature a model or provider supports.
type Capability string

// Capability tags understood by the selection engine.
const (
	CapChat       Capability = "chat"
	CapStreaming  Capability = "streaming"
	CapVision     Capability = "vision"
	CapTools      Capability = "tools"
	CapJSON       Capability = "json"
	CapStructured Capability = "structured"
	CapReasoning  Capability = "reasoning"
	CapImage      Capability = "image"
	CapAudio      Capability = "audio"
	CapHearing    Capability = "hearing"
	CapEmbedding  Capability = "embedding"
	CapZDR        Capability = "zdr"
)

// ModelLevelCapabilities are capabilities that describe a model rather than a
// provider. Capability detection includes them in every provider's set so
// they never filter a provider out; filtering happens per model.
var ModelLevelCapabilities = []Capability{
	CapVision, CapTools, CapJSON, CapStructured, CapReasoning, CapZDR,
}

// Parameter tags a per-request tunable the model must accept.
type Parameter string

// Parameter tags used by request reconciliation.
const (
	ParamMaxTokens        Parameter = "max_tokens"
	ParamTemperature      Parameter = "temperature"
	ParamTopP             Parameter = "top_p"
	ParamStop             Parameter = "stop"
	ParamSeed             Parameter = "seed"
	ParamTools            Parameter = "tools"
	ParamResponseFormat   Parameter = "response_format"
	ParamReasoningEffort  Parameter = "reasoning_effort"
	ParamPresencePenalty  Parameter = "presence_penalty"
	ParamFrequencyPenalty Parameter = "frequency_penalty"
	ParamDimensions       Parameter = "dimensions"
	ParamVoice            Parameter = "voice"
	ParamSpeed            Parameter = "speed"
	ParamLanguage         Parameter = "language"
	ParamQuality          Parameter = "quality"
	ParamSize             Parameter = "size"
	ParamStyle            Parameter = "style"
)

// CapabilitySet is an ordered, duplicate-free set of capability tags.
type CapabilitySet []Capability

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	for _, v := range s {
		if v == c {
			return true
		}
	}
	return false
}

// Add returns the set with c appended if not already present.
func (s CapabilitySet) Add(c Capability) CapabilitySet {
	if s.Has(c) {
		return s
	}
	return append(s, c)
}

// Union returns the deduplicated union of s and other, preserving order.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	out := make(CapabilitySet, 0, len(s)+len(other))
	for _, c := range s {
		out = out.Add(c)
	}
	for _, c := range other {
		out = out.Add(c)
	}
	return out
}

// ParameterSet is an ordered, duplicate-free set of parameter tags.
type ParameterSet []Parameter

// Has reports whether the set contains p.
func (s ParameterSet) Has(p Parameter) bool {
	for _, v := range s {
		if v == p {
			return true
		}
	}
	return false
}

// Add returns the set with p appended if not already present.
func (s ParameterSet) Add(p Parameter) ParameterSet {
	if s.Has(p) {
		return s
	}
	return append(s, p)
}

// Union returns the deduplicated union of s and other, preserving order.
func (s ParameterSet) Union(other ParameterSet) ParameterSet {
	out := make(ParameterSet, 0, len(s)+len(other))
	for _, p := range s {
		out = out.Add(p)
	}
	for _, p := range other {
		out = out.Add(p)
	}
	return out
}

// Minus returns the parameters in s that are not in other.
func (s ParameterSet) Minus(other ParameterSet) ParameterSet {
	var out ParameterSet
	for _, p := range s {
		if !other.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Tier is a coarse quality band for a model.
type Tier string

// Tier constants in decreasing order of expected quality.
const (
	TierFlagship     Tier = "flagship"
	TierEfficient    Tier = "efficient"
	TierLegacy       Tier = "legacy"
	TierExperimental Tier = "experimental"
)

// Metrics holds observed performance data for a model. All pointer fields are
// optional; counters start at zero.
type Metrics struct {
	TokensPerSecond        *float64  `json:"tokens_per_second,omitempty" yaml:"tokens_per_second,omitempty"`
	TimeToFirstToken       *float64  `json:"time_to_first_token,omitempty" yaml:"time_to_first_token,omitempty"`
	AverageRequestDuration *float64  `json:"average_request_duration,omitempty" yaml:"average_request_duration,omitempty"`
	AccuracyScore          *float64  `json:"accuracy_score,omitempty" yaml:"accuracy_score,omitempty"` // in [0,1]
	RequestCount           int64     `json:"request_count,omitempty" yaml:"request_count,omitempty"`
	SuccessCount           int64     `json:"success_count,omitempty" yaml:"success_count,omitempty"`
	FailureCount           int64     `json:"failure_count,omitempty" yaml:"failure_count,omitempty"`
	LastUpdated            time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

// Clone returns a deep copy of the metrics, so holders of the copy never
// observe later in-place updates. Clone of nil is nil.
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return nil
	}
	out := *m
	out.TokensPerSecond = copyFloat(m.TokensPerSecond)
	out.TimeToFirstToken = copyFloat(m.TimeToFirstToken)
	out.AverageRequestDuration = copyFloat(m.AverageRequestDuration)
	out.AccuracyScore = copyFloat(m.AccuracyScore)
	return &out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// ModelInfo describes a single model offered by a provider.
type ModelInfo struct {
	ID                  string         `json:"id" yaml:"id"`
	Provider            string         `json:"provider" yaml:"provider"`
	DisplayName         string         `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Capabilities        CapabilitySet  `json:"capabilities" yaml:"capabilities"`
	Tier                Tier           `json:"tier,omitempty" yaml:"tier,omitempty"`
	ContextWindow       int            `json:"context_window" yaml:"context_window"`
	MaxOutputTokens     int            `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	Pricing             Pricing        `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	Metrics             *Metrics       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	SupportedParameters ParameterSet   `json:"supported_parameters,omitempty" yaml:"supported_parameters,omitempty"`
	Tokenizer           string         `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Key returns the fully qualified "provider/id" catalog key.
func (m ModelInfo) Key() string {
	return m.Provider + "/" + m.ID
}

// Validate checks the invariants required for registration.
func (m ModelInfo) Validate() error {
	if m.ID == "" {
		return errors.New("model id is required")
	}
	if m.Provider == "" {
		return fmt.Errorf("model %s: provider is required", m.ID)
	}
	if m.ContextWindow < 1 {
		return fmt.Errorf("model %s: context window must be at least 1, got %d", m.Key(), m.ContextWindow)
	}
	return nil
}

// Merge combines base with src under the merge-on-insert rules:
// capability and parameter sets union, pricing/metrics/metadata shallow-merge
// with src winning on conflict, tier adopted from src unless src is
// experimental, context window takes the max, display name takes src when
// non-empty.
func Merge(base, src ModelInfo) ModelInfo {
	out := base
	out.Capabilities = base.Capabilities.Union(src.Capabilities)
	out.SupportedParameters = base.SupportedParameters.Union(src.SupportedParameters)
	out.Pricing = mergePricing(base.Pricing, src.Pricing)
	out.Metrics = mergeMetrics(base.Metrics, src.Metrics)
	out.Metadata = mergeMap(base.Metadata, src.Metadata)
	if src.Tier != "" && src.Tier != TierExperimental {
		out.Tier = src.Tier
	}
	if out.Tier == "" {
		out.Tier = src.Tier
	}
	if src.ContextWindow > 0 && src.ContextWindow > out.ContextWindow {
		out.ContextWindow = src.ContextWindow
	}
	if src.MaxOutputTokens > out.MaxOutputTokens {
		out.MaxOutputTokens = src.MaxOutputTokens
	}
	if src.DisplayName != "" {
		out.DisplayName = src.DisplayName
	}
	if src.Tokenizer != "" {
		out.Tokenizer = src.Tokenizer
	}
	return out
}

func mergeMap(base, src map[string]any) map[string]any {
	if len(base) == 0 && len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(src))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

func mergeMetrics(base, src *Metrics) *Metrics {
	if src == nil {
		return base
	}
	if base == nil {
		cp := *src
		return &cp
	}
	out := *base
	if src.TokensPerSecond != nil {
		out.TokensPerSecond = src.TokensPerSecond
	}
	if src.TimeToFirstToken != nil {
		out.TimeToFirstToken = src.TimeToFirstToken
	}
	if src.AverageRequestDuration != nil {
		out.AverageRequestDuration = src.AverageRequestDuration
	}
	if src.AccuracyScore != nil {
		out.AccuracyScore = src.AccuracyScore
	}
	if src.RequestCount != 0 {
		out.RequestCount = src.RequestCount
	}
	if src.SuccessCount != 0 {
		out.SuccessCount = src.SuccessCount
	}
	if src.FailureCount != 0 {
		out.FailureCount = src.FailureCount
	}
	if !src.LastUpdated.IsZero() {
		out.LastUpdated = src.LastUpdated
	}
	return &out
}
