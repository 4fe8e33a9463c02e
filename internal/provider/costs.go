package provider

import "sync"

// Tracker accumulates provider spend across a run. Clients call Add after
// every billable call; the stage executor reads Total before and after a
// stage to attribute the delta.
type Tracker struct {
	mu         sync.Mutex
	total      float64
	byProvider map[string]float64
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byProvider: make(map[string]float64)}
}

// Add records spend attributed to a named provider. Negative amounts are
// ignored.
func (t *Tracker) Add(provider string, amountUSD float64) {
	if t == nil || amountUSD <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += amountUSD
	t.byProvider[provider] += amountUSD
}

// Total returns the accumulated spend.
func (t *Tracker) Total() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ByProvider returns a copy of the per-provider breakdown.
func (t *Tracker) ByProvider() map[string]float64 {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.byProvider))
	for name, amount := range t.byProvider {
		out[name] = amount
	}
	return out
}
