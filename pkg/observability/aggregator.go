package observability

import (
	"github.com/aretw0/vine/pkg/domain"
)

// Aggregator combines the hooks of several consumers into a single set.
type Aggregator struct {
	hooks []domain.LifecycleHooks
}

// NewAggregator creates a new aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		hooks: make([]domain.LifecycleHooks, 0),
	}
}

// Add registers hooks. They run after the ones added before.
func (a *Aggregator) Add(h domain.LifecycleHooks) *Aggregator {
	a.hooks = append(a.hooks, h)
	return a
}

// Hooks returns the combined hooks.
func (a *Aggregator) Hooks() domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range a.hooks {
		out = out.Merge(h)
	}
	return out
}
