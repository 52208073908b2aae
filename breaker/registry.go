package breaker

import (
	"sync"

	"github.com/quantfold/riskgate/order"
)

// Registry holds the global breaker and lazily-created per-scope
// breakers. Allowed applies AND semantics: a global trip overrides
// every armed scope breaker.
type Registry struct {
	mu     sync.RWMutex
	global *Breaker
	scopes map[order.Scope]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{
		global: New(),
		scopes: make(map[order.Scope]*Breaker),
	}
}

// Global returns the process-wide breaker.
func (r *Registry) Global() *Breaker { return r.global }

// ForScope returns the breaker for scope, creating it armed on first
// use.
func (r *Registry) ForScope(scope order.Scope) *Breaker {
	r.mu.RLock()
	b, ok := r.scopes[scope]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.scopes[scope]; ok {
		return b
	}
	b = New()
	r.scopes[scope] = b
	return b
}

// Allowed reports whether order flow is open for scope: both the
// global and the scope breaker must be armed.
func (r *Registry) Allowed(scope order.Scope) bool {
	return !r.global.Tripped() && !r.ForScope(scope).Tripped()
}

// Scopes returns every scope that has a breaker instance.
func (r *Registry) Scopes() []order.Scope {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Scope, 0, len(r.scopes))
	for s := range r.scopes {
		out = append(out, s)
	}
	return out
}
