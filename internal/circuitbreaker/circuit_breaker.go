// Package circuitbreaker tracks provider health for the router. Each
// provider name gets its own three-state breaker; a provider whose breaker
// is open is excluded from model selection until its cooldown elapses.
//
// State transitions:
//
//	Closed   → Open     when consecutive failures reach the failure threshold
//	Open     → HalfOpen after the cooldown elapses
//	HalfOpen → Closed   when consecutive successes reach the success threshold
//	HalfOpen → Open     on any failure
package circuitbreaker

import (
	"sort"
	"sync"
	"time"
)

// State is one breaker's current position.
type State int

const (
	// StateClosed passes requests through.
	StateClosed State = iota
	// StateOpen excludes the provider.
	StateOpen
	// StateHalfOpen lets trial requests through after the cooldown.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Set holds one breaker per provider name, created on first use.
type Set struct {
	mu               sync.Mutex
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
	byProvider       map[string]*breaker
}

type breaker struct {
	state     State
	failures  int
	successes int
	openUntil time.Time
}

// NewSet creates a provider-keyed breaker set. Defaults are applied for
// zero/negative values: failureThreshold=5, successThreshold=1, cooldown=30s.
func NewSet(failureThreshold, successThreshold int, cooldown time.Duration) *Set {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Set{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		now:              time.Now,
		byProvider:       make(map[string]*breaker),
	}
}

// get must be called with s.mu held.
func (s *Set) get(provider string) *breaker {
	b, ok := s.byProvider[provider]
	if !ok {
		b = &breaker{state: StateClosed}
		s.byProvider[provider] = b
	}
	return b
}

// resolve applies the Open→HalfOpen transition. Must be called with s.mu
// held.
func (s *Set) resolve(b *breaker) State {
	if b.state == StateOpen && s.now().After(b.openUntil) {
		b.state = StateHalfOpen
		b.successes = 0
	}
	return b.state
}

// State returns the provider's current state. Unknown providers are closed.
func (s *Set) State(provider string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byProvider[provider]
	if !ok {
		return StateClosed
	}
	return s.resolve(b)
}

// Allow reports whether requests to the provider may proceed.
func (s *Set) Allow(provider string) bool {
	return s.State(provider) != StateOpen
}

// Open returns the names of the providers whose breaker is currently open,
// sorted.
func (s *Set) Open() []string {
	s.mu.Lock()
	var out []string
	for name, b := range s.byProvider {
		if s.resolve(b) == StateOpen {
			out = append(out, name)
		}
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Success records one successful request against the provider.
func (s *Set) Success(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.get(provider)
	switch s.resolve(b) {
	case StateHalfOpen:
		b.successes++
		if b.successes >= s.successThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

// Failure records one failed request against the provider.
func (s *Set) Failure(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.get(provider)
	switch s.resolve(b) {
	case StateClosed:
		b.failures++
		if b.failures >= s.failureThreshold {
			b.state = StateOpen
			b.openUntil = s.now().Add(s.cooldown)
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openUntil = s.now().Add(s.cooldown)
		b.successes = 0
	}
}
