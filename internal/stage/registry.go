package stage

import (
	"context"
	"fmt"
)

// Registry binds every stage in Order to its handler. Construction fails
// if any stage is unbound, so an order entry with no matching handler
// cannot exist at runtime.
type Registry struct {
	handlers map[ID]Handler
}

// NewRegistry builds a registry from the given handlers. Every entry in
// Order must be covered exactly once; handlers for unknown stages are
// rejected.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	bound := make(map[ID]Handler, len(Order))
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("nil stage handler")
		}
		id := h.ID()
		if !Valid(id) {
			return nil, fmt.Errorf("handler for unknown stage %q", id)
		}
		if _, dup := bound[id]; dup {
			return nil, fmt.Errorf("duplicate handler for stage %q", id)
		}
		bound[id] = h
	}
	for _, id := range Order {
		if _, ok := bound[id]; !ok {
			return nil, fmt.Errorf("no handler bound for stage %q", id)
		}
	}
	return &Registry{handlers: bound}, nil
}

// Handler returns the handler bound to id.
func (r *Registry) Handler(id ID) (Handler, bool) {
	h, ok := r.handlers[id]
	return h, ok
}

// HealthChecks runs every handler's health check in execution order.
func (r *Registry) HealthChecks(ctx context.Context) []Health {
	results := make([]Health, 0, len(Order))
	for _, id := range Order {
		results = append(results, r.handlers[id].HealthCheck(ctx))
	}
	return results
}
