package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/ferro-labs/model-router/internal/logging"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

// Refresh rebuilds the catalog from provider listings and external sources.
// Individual source or provider failures are logged and skipped, never
// propagated. The new catalog replaces the old one in a single swap, so
// concurrent readers observe either the pre-refresh or post-refresh state.
func (r *Registry) Refresh(ctx context.Context) error {
	log := logging.FromContext(ctx)

	r.mu.RLock()
	sources := make([]ModelSource, len(r.sources))
	copy(sources, r.sources)
	r.mu.RUnlock()
	provs := r.Providers()

	external := r.fetchSources(ctx, sources)

	// Provider listings happen outside the lock; only the final build and
	// swap hold it.
	type listing struct {
		name   string
		models []models.ModelInfo
	}
	var listings []listing
	for _, p := range provs {
		lister, ok := p.(providers.ModelLister)
		if !ok {
			continue
		}
		listed, err := lister.ListModels(ctx)
		if err != nil {
			log.Warn("model listing failed, skipping provider",
				"provider", p.Name(), "error", err)
			continue
		}
		listings = append(listings, listing{name: p.Name(), models: listed})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := newCatalog()
	for _, l := range listings {
		for _, m := range l.models {
			m.Provider = l.name
			m = r.applyListingDefaults(m)
			key := m.Key()
			if src, ok := external[key]; ok {
				m = models.Merge(m, src)
				delete(external, key)
			}
			if err := r.registerLocked(fresh, m); err != nil {
				log.Warn("refresh: dropping invalid model",
					"model", key, "error", err)
			}
		}
	}

	// Source entries no provider covered still get registered, in key order
	// for determinism.
	keys := make([]string, 0, len(external))
	for k := range external {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m := r.applyListingDefaults(external[k])
		if err := r.registerLocked(fresh, m); err != nil {
			log.Warn("refresh: dropping invalid source model",
				"model", k, "error", err)
		}
	}

	r.store = fresh
	log.Info("catalog refreshed",
		"models", len(fresh.order), "providers", len(listings), "sources", len(sources))
	return nil
}

// fetchSources queries every source concurrently and indexes the results by
// "provider/id". Later sources win on key collision.
func (r *Registry) fetchSources(ctx context.Context, sources []ModelSource) map[string]models.ModelInfo {
	log := logging.FromContext(ctx)

	type result struct {
		index  int
		models []models.ModelInfo
	}
	results := make([]result, 0, len(sources))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, s := range sources {
		wg.Add(1)
		go func(i int, s ModelSource) {
			defer wg.Done()
			fetched, err := s.FetchModels(ctx)
			if err != nil {
				log.Warn("model source fetch failed, skipping",
					"source", s.Name(), "error", err)
				return
			}
			mu.Lock()
			results = append(results, result{index: i, models: fetched})
			mu.Unlock()
		}(i, s)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	out := make(map[string]models.ModelInfo)
	for _, res := range results {
		for _, m := range res.models {
			if m.ID == "" || m.Provider == "" {
				continue
			}
			if existing, ok := out[m.Key()]; ok {
				out[m.Key()] = models.Merge(existing, m)
			} else {
				out[m.Key()] = m
			}
		}
	}
	return out
}

// applyListingDefaults completes a listed model: capabilities default to
// chat+streaming, tier is detected from the id, pricing falls back to the
// configured default per-million rate (output at twice input), and the
// context window defaults to 8192.
func (r *Registry) applyListingDefaults(m models.ModelInfo) models.ModelInfo {
	if len(m.Capabilities) == 0 {
		m.Capabilities = models.CapabilitySet{models.CapChat, models.CapStreaming}
	}
	if m.Tier == "" {
		m.Tier = models.DetectTier(m.ID)
	}
	if m.Pricing.Text == nil && r.defaultPriceM > 0 {
		in := r.defaultPriceM
		out := r.defaultPriceM * 2
		m.Pricing.Text = &models.TokenPricing{Input: &in, Output: &out}
	}
	if m.ContextWindow < 1 {
		m.ContextWindow = 8192
	}
	return m
}
