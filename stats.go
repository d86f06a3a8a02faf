package modelrouter

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of the router's cumulative counters.
type Stats struct {
	TotalRequests  int64
	TotalCostUSD   float64
	TotalLatency   time.Duration
	AverageCostUSD float64
	AverageLatency time.Duration

	// ModelsByProvider counts catalog entries per provider.
	ModelsByProvider map[string]int

	// ModelOutcomes holds per-model success and failure counts, keyed by
	// "provider/id".
	ModelOutcomes map[string]ModelOutcome
}

// ModelOutcome is the per-model request tally.
type ModelOutcome struct {
	Success int64
	Failure int64
}

// statsAggregator accumulates realized cost and latency across requests.
// Cancelled and failed requests are not recorded.
type statsAggregator struct {
	mu      sync.Mutex
	count   int64
	cost    float64
	latency time.Duration
}

func (s *statsAggregator) record(cost float64, elapsed time.Duration) {
	s.mu.Lock()
	s.count++
	s.cost += cost
	s.latency += elapsed
	s.mu.Unlock()
}

func (s *statsAggregator) snapshot() (count int64, cost float64, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.cost, s.latency
}

// Stats returns the cumulative totals plus per-provider and per-model
// breakdowns read from the catalog.
func (r *Router) Stats() Stats {
	count, cost, latency := r.stats.snapshot()
	out := Stats{
		TotalRequests:    count,
		TotalCostUSD:     cost,
		TotalLatency:     latency,
		ModelsByProvider: r.registry.ModelCountsByProvider(),
		ModelOutcomes:    make(map[string]ModelOutcome),
	}
	if count > 0 {
		out.AverageCostUSD = cost / float64(count)
		out.AverageLatency = latency / time.Duration(count)
	}
	for _, m := range r.registry.List() {
		if m.Metrics == nil || (m.Metrics.SuccessCount == 0 && m.Metrics.FailureCount == 0) {
			continue
		}
		out.ModelOutcomes[m.Key()] = ModelOutcome{
			Success: m.Metrics.SuccessCount,
			Failure: m.Metrics.FailureCount,
		}
	}
	return out
}
