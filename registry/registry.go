// Package registry holds the model catalog: a dual-keyed, merge-on-insert
// store of ModelInfo bound to live providers, plus the selection engine that
// scores catalog entries against a predicate and the refresh coordinator
// that rebuilds the catalog from provider listings and external sources.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

// Config configures a Registry.
type Config struct {
	// Overrides are applied to every newly registered model whose matcher
	// matches. Applied idempotently.
	Overrides []models.Override

	// WeightProfiles are named scoring weight presets selectable per request.
	WeightProfiles map[string]models.Weights

	// DefaultWeights apply when neither the predicate nor a profile carries
	// weights. Nil falls back to the built-in default.
	DefaultWeights *models.Weights

	// DefaultPricePerMTokens is the input price assumed during refresh for
	// models whose listing carries no pricing. Output is priced at twice
	// this. Zero disables default pricing.
	DefaultPricePerMTokens float64
}

// entry is one catalog slot. seq is the registration sequence number used
// for deterministic tie-breaking.
type entry struct {
	model models.ModelInfo
	seq   int
}

// catalog is the swappable backing store. Readers hold it only long enough
// to copy what they need; refresh replaces the whole pointer.
type catalog struct {
	byKey map[string]*entry   // "provider/id"
	byID  map[string][]*entry // bare id, registration order
	order []*entry
	seq   int
}

func newCatalog() *catalog {
	return &catalog{
		byKey: make(map[string]*entry),
		byID:  make(map[string][]*entry),
	}
}

// boundProvider pairs a registered provider with its detected capabilities
// and registration index.
type boundProvider struct {
	provider providers.Provider
	caps     models.CapabilitySet
	index    int
}

// Registry is the process-lived model catalog.
type Registry struct {
	mu        sync.RWMutex
	store     *catalog
	providers map[string]*boundProvider
	handlers  map[string]*ModelHandler
	sources   []ModelSource

	overrides      []models.Override
	weightProfiles map[string]models.Weights
	defaultWeights *models.Weights
	defaultPriceM  float64
}

// New creates a Registry, compiling the configured override patterns.
func New(cfg Config) (*Registry, error) {
	overrides := make([]models.Override, len(cfg.Overrides))
	copy(overrides, cfg.Overrides)
	for i := range overrides {
		if err := overrides[i].Compile(); err != nil {
			return nil, err
		}
	}
	return &Registry{
		store:          newCatalog(),
		providers:      make(map[string]*boundProvider),
		handlers:       make(map[string]*ModelHandler),
		overrides:      overrides,
		weightProfiles: cfg.WeightProfiles,
		defaultWeights: cfg.DefaultWeights,
		defaultPriceM:  cfg.DefaultPricePerMTokens,
	}, nil
}

// RegisterProvider binds a provider and caches its detected capability set.
// Re-registering a name replaces the binding but keeps its original order.
func (r *Registry) RegisterProvider(p providers.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.providers[p.Name()]; ok {
		existing.provider = p
		existing.caps = providers.Detect(p)
		return
	}
	r.providers[p.Name()] = &boundProvider{
		provider: p,
		caps:     providers.Detect(p),
		index:    len(r.providers),
	}
}

// Provider returns the bound provider with the given name.
func (r *Registry) Provider(name string) (providers.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.providers[name]
	if !ok {
		return nil, false
	}
	return bp.provider, true
}

// Providers returns all bound providers in ascending priority order, ties by
// registration order.
func (r *Registry) Providers() []providers.Provider {
	r.mu.RLock()
	bound := make([]*boundProvider, 0, len(r.providers))
	for _, bp := range r.providers {
		bound = append(bound, bp)
	}
	r.mu.RUnlock()

	sort.SliceStable(bound, func(i, j int) bool {
		pi, pj := bound[i].provider.Priority(), bound[j].provider.Priority()
		if pi != pj {
			return pi < pj
		}
		return bound[i].index < bound[j].index
	})
	out := make([]providers.Provider, len(bound))
	for i, bp := range bound {
		out[i] = bp.provider
	}
	return out
}

// ProviderCaps returns the cached capability set detected for a provider.
func (r *Registry) ProviderCaps(name string) (models.CapabilitySet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.providers[name]
	if !ok {
		return nil, false
	}
	return bp.caps, true
}

// RegisterSource adds an external model source consulted during refresh.
func (r *Registry) RegisterSource(s ModelSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
}

// Register inserts a model, merging with any existing entry under the same
// key and applying matching overrides. It fails only when the model lacks an
// id or provider, or when its context window is below 1.
func (r *Registry) Register(m models.ModelInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(r.store, m)
}

// RegisterAll registers models in order, stopping at the first failure.
func (r *Registry) RegisterAll(ms []models.ModelInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range ms {
		if err := r.registerLocked(r.store, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerLocked(c *catalog, m models.ModelInfo) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	for i := range r.overrides {
		if r.overrides[i].Matches(m) {
			m = r.overrides[i].Apply(m)
		}
	}
	key := m.Key()
	if existing, ok := c.byKey[key]; ok {
		existing.model = models.Merge(existing.model, m)
		return nil
	}
	c.seq++
	e := &entry{model: m, seq: c.seq}
	c.byKey[key] = e
	c.byID[m.ID] = append(c.byID[m.ID], e)
	c.order = append(c.order, e)
	return nil
}

// Get looks a model up by "provider/id" or bare id. A bare id ambiguous
// across providers resolves to the entry from the lowest-priority provider,
// ties broken by registration order.
func (r *Registry) Get(id string) (models.ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.lookupLocked(id)
	if e == nil {
		return models.ModelInfo{}, false
	}
	return snapshotModel(e.model), true
}

func (r *Registry) lookupLocked(id string) *entry {
	if strings.Contains(id, "/") {
		if e, ok := r.store.byKey[id]; ok {
			return e
		}
	}
	candidates := r.store.byID[id]
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, e := range candidates[1:] {
		if r.providerPriorityLocked(e.model.Provider) < r.providerPriorityLocked(best.model.Provider) {
			best = e
		}
	}
	return best
}

// snapshotModel prepares an entry's model for handing out. Metrics is
// cloned because RecordOutcome mutates it in place while callers may still
// hold the returned copy.
func snapshotModel(m models.ModelInfo) models.ModelInfo {
	m.Metrics = m.Metrics.Clone()
	return m
}

func (r *Registry) providerPriorityLocked(name string) int {
	if bp, ok := r.providers[name]; ok {
		return bp.provider.Priority()
	}
	return providers.DefaultPriority
}

// List returns every catalog entry in registration order.
func (r *Registry) List() []models.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ModelInfo, 0, len(r.store.order))
	for _, e := range r.store.order {
		out = append(out, snapshotModel(e.model))
	}
	return out
}

// Owned returns the entries whose provider is currently bound.
func (r *Registry) Owned() []models.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ModelInfo
	for _, e := range r.store.order {
		if _, ok := r.providers[e.model.Provider]; ok {
			out = append(out, snapshotModel(e.model))
		}
	}
	return out
}

// Clear empties the catalog. Providers, handlers, and sources stay bound.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = newCatalog()
}

// ProviderFor resolves a model identifier to its catalog key and bound
// provider.
func (r *Registry) ProviderFor(modelID string) (string, providers.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.lookupLocked(modelID)
	if e == nil {
		return "", nil, false
	}
	bp, ok := r.providers[e.model.Provider]
	if !ok {
		return "", nil, false
	}
	return e.model.Key(), bp.provider, true
}

// RegisterHandler installs a per-model handler. A handler with an empty
// Provider intercepts the bare model id on any provider.
func (r *Registry) RegisterHandler(h *ModelHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.key()] = h
}

// GetHandler returns the handler for the given provider and model id,
// checking the bare id first, then "provider/id".
func (r *Registry) GetHandler(provider, id string) (*ModelHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[id]; ok {
		return h, true
	}
	h, ok := r.handlers[provider+"/"+id]
	return h, ok
}

// WeightProfile returns the named weight preset.
func (r *Registry) WeightProfile(name string) (models.Weights, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.weightProfiles[name]
	return w, ok
}

// RecordOutcome folds one completed request into the model's metrics:
// success/failure counters and a running mean of request duration.
func (r *Registry) RecordOutcome(modelID string, success bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.lookupLocked(modelID)
	if e == nil {
		return
	}
	m := e.model.Metrics
	if m == nil {
		m = &models.Metrics{}
		e.model.Metrics = m
	}
	m.RequestCount++
	if success {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}
	sec := elapsed.Seconds()
	if m.AverageRequestDuration == nil {
		m.AverageRequestDuration = &sec
	} else {
		mean := *m.AverageRequestDuration + (sec-*m.AverageRequestDuration)/float64(m.RequestCount)
		m.AverageRequestDuration = &mean
	}
	m.LastUpdated = time.Now()
}

// ModelCountsByProvider returns how many catalog entries each provider owns.
func (r *Registry) ModelCountsByProvider() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.providers))
	for _, e := range r.store.order {
		out[e.model.Provider]++
	}
	return out
}
