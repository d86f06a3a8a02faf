package registry

import (
	"sort"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

// scoreEpsilon keeps models with no scorable dimensions selectable.
const scoreEpsilon = 1e-3

// builtinWeights apply when no predicate, profile, or registry-level weights
// are set.
var builtinWeights = models.Weights{
	Cost:     ptrFloat(0.5),
	Speed:    ptrFloat(0.3),
	Accuracy: ptrFloat(0.2),
}

func ptrFloat(f float64) *float64 { return &f }

// Predicate is the selection input: hard filters plus scoring preferences.
// The zero value matches every bound model.
type Predicate struct {
	// Model pins an explicit model identifier and bypasses scoring.
	Model string

	Required models.CapabilitySet
	// RequiredModel is checked against the model's capabilities only, not
	// the provider's. Streaming goes here: the dispatch ladder can adapt an
	// executor-only provider, so providers are never filtered on it.
	RequiredModel      models.CapabilitySet
	Optional           models.CapabilitySet
	RequiredParameters models.ParameterSet
	OptionalParameters models.ParameterSet

	// Allow restricts candidates to these providers when non-empty; Deny
	// always excludes.
	Allow []string
	Deny  []string

	Budget           *models.Budget
	Weights          *models.Weights
	MinContextWindow int
	Tier             models.Tier
	WeightProfile    string
}

// ScoredModel is one search result.
type ScoredModel struct {
	Model    models.ModelInfo
	Provider providers.Provider
	Score    float64
}

// SelectedModel is the winning candidate handed to dispatch.
type SelectedModel struct {
	Model    models.ModelInfo
	Provider providers.Provider
	Score    float64
}

// Select returns the best-scoring model for p, or nil when nothing matches.
func (r *Registry) Select(p Predicate) *SelectedModel {
	if p.Model != "" {
		return r.selectPinned(p)
	}
	results := r.Search(p)
	if len(results) == 0 {
		return nil
	}
	top := results[0]
	return &SelectedModel{Model: top.Model, Provider: top.Provider, Score: top.Score}
}

// selectPinned resolves an explicit model id, validating required
// capabilities and parameters. Score is fixed at 1.0.
func (r *Registry) selectPinned(p Predicate) *SelectedModel {
	r.mu.RLock()
	e := r.lookupLocked(p.Model)
	var (
		m  models.ModelInfo
		bp *boundProvider
	)
	if e != nil {
		m = snapshotModel(e.model)
		bp = r.providers[e.model.Provider]
	}
	r.mu.RUnlock()
	if e == nil || bp == nil {
		return nil
	}
	for _, c := range p.Required {
		if !m.Capabilities.Has(c) || !bp.caps.Has(c) {
			return nil
		}
	}
	for _, c := range p.RequiredModel {
		if !m.Capabilities.Has(c) {
			return nil
		}
	}
	for _, pm := range p.RequiredParameters.Minus(p.OptionalParameters) {
		if !m.SupportedParameters.Has(pm) {
			return nil
		}
	}
	return &SelectedModel{Model: m, Provider: bp.provider, Score: 1.0}
}

// Search filters and scores every bound catalog entry against p, returning
// results sorted by score descending. Ties are broken by provider priority,
// then registration order.
func (r *Registry) Search(p Predicate) []ScoredModel {
	weights := r.resolveWeights(p)

	type candidate struct {
		ScoredModel
		priority int
		seq      int
	}

	r.mu.RLock()
	var candidates []candidate
	for _, e := range r.store.order {
		m := e.model
		bp, ok := r.providers[m.Provider]
		if !ok {
			continue
		}
		if !r.passesFilter(p, m, bp) {
			continue
		}
		score := scoreModel(m, weights)
		score *= optionalMultipliers(p, m)
		candidates = append(candidates, candidate{
			ScoredModel: ScoredModel{Model: snapshotModel(m), Provider: bp.provider, Score: score},
			priority:    bp.provider.Priority(),
			seq:         e.seq,
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].seq < candidates[j].seq
	})

	out := make([]ScoredModel, len(candidates))
	for i, c := range candidates {
		out[i] = c.ScoredModel
	}
	return out
}

func (r *Registry) passesFilter(p Predicate, m models.ModelInfo, bp *boundProvider) bool {
	for _, d := range p.Deny {
		if d == m.Provider {
			return false
		}
	}
	if len(p.Allow) > 0 {
		allowed := false
		for _, a := range p.Allow {
			if a == m.Provider {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	for _, c := range p.Required {
		if !m.Capabilities.Has(c) || !bp.caps.Has(c) {
			return false
		}
	}
	for _, c := range p.RequiredModel {
		if !m.Capabilities.Has(c) {
			return false
		}
	}
	for _, pm := range p.RequiredParameters.Minus(p.OptionalParameters) {
		if !m.SupportedParameters.Has(pm) {
			return false
		}
	}
	if p.MinContextWindow > m.ContextWindow {
		return false
	}
	if p.Tier != "" && p.Tier != m.Tier {
		return false
	}
	if p.Budget != nil && p.Budget.MaxCostPerMillionTokens != nil {
		if avgTextPrice(m) > *p.Budget.MaxCostPerMillionTokens {
			return false
		}
	}
	return true
}

// resolveWeights follows the precedence predicate → named profile →
// registry default → built-in default.
func (r *Registry) resolveWeights(p Predicate) models.Weights {
	if p.Weights != nil {
		return *p.Weights
	}
	if p.WeightProfile != "" {
		if w, ok := r.WeightProfile(p.WeightProfile); ok {
			return w
		}
	}
	r.mu.RLock()
	dw := r.defaultWeights
	r.mu.RUnlock()
	if dw != nil {
		return *dw
	}
	return builtinWeights
}

// avgTextPrice averages the text input and output prices, treating missing
// fields as zero.
func avgTextPrice(m models.ModelInfo) float64 {
	t := m.Pricing.Text
	if t == nil {
		return 0
	}
	var in, out float64
	if t.Input != nil {
		in = *t.Input
	}
	if t.Output != nil {
		out = *t.Output
	}
	return (in + out) / 2
}

// scoreModel computes the normalized weighted score for m. Only dimensions
// the model has data for contribute; when none do, the score floors at
// epsilon so the model stays selectable.
func scoreModel(m models.ModelInfo, w models.Weights) float64 {
	var sum, wsum float64

	if w.Cost != nil && m.Pricing.Text != nil {
		v := 1 / (1 + avgTextPrice(m)/10)
		sum += *w.Cost * v
		wsum += *w.Cost
	}
	if w.Speed != nil && m.Metrics != nil && m.Metrics.TokensPerSecond != nil {
		v := *m.Metrics.TokensPerSecond / 100
		if v > 1 {
			v = 1
		}
		sum += *w.Speed * v
		wsum += *w.Speed
	}
	if w.Accuracy != nil {
		sum += *w.Accuracy * accuracyScore(m)
		wsum += *w.Accuracy
	}
	if w.ContextWindow != nil && m.ContextWindow > 0 {
		v := float64(m.ContextWindow) / 100000
		if v > 1 {
			v = 1
		}
		sum += *w.ContextWindow * v
		wsum += *w.ContextWindow
	}

	if wsum == 0 {
		return scoreEpsilon
	}
	score := sum / wsum
	if score < scoreEpsilon {
		score = scoreEpsilon
	}
	return score
}

// accuracyScore uses the observed metric when present, else a tier-derived
// estimate.
func accuracyScore(m models.ModelInfo) float64 {
	if m.Metrics != nil && m.Metrics.AccuracyScore != nil {
		return *m.Metrics.AccuracyScore
	}
	switch m.Tier {
	case models.TierFlagship:
		return 1.0
	case models.TierEfficient:
		return 0.7
	default:
		return 0.5
	}
}

// optionalMultipliers boosts the score for matched optional capabilities
// (up to 2x) and optional parameters (up to 1.5x).
func optionalMultipliers(p Predicate, m models.ModelInfo) float64 {
	mult := 1.0
	if n := len(p.Optional); n > 0 {
		matched := 0
		for _, c := range p.Optional {
			if m.Capabilities.Has(c) {
				matched++
			}
		}
		mult *= 1 + float64(matched)/float64(n)
	}
	if n := len(p.OptionalParameters); n > 0 {
		matched := 0
		for _, pm := range p.OptionalParameters {
			if m.SupportedParameters.Has(pm) {
				matched++
			}
		}
		mult *= 1 + 0.5*float64(matched)/float64(n)
	}
	return mult
}
