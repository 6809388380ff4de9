package event

import (
	"sync"

	"github.com/agentcore/agentcore/pkg/agentcore/registry"
)

// Router maps event types to the handlers that should receive them. It
// performs no execution of its own — dispatchers consult it to resolve
// handlers, then own delivery, retry, and fault handling themselves. This
// split mirrors the reference dispatcher/router separation: the original
// router only answers "who wants this event type", nothing more.
type Router struct {
	byType   *registry.Registry[string, []Handler]
	wildcard []Handler
	mu       sync.Mutex
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{byType: registry.New[string, []Handler]()}
}

// Register adds a handler. A handler whose Handles() returns an empty
// slice is treated as a wildcard and receives every event type.
func (r *Router) Register(h Handler) {
	types := h.Handles()
	if len(types) == 0 {
		r.mu.Lock()
		r.wildcard = append(r.wildcard, h)
		r.mu.Unlock()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		existing, _ := r.byType.Get(t)
		r.byType.Register(t, append(existing, h))
	}
}

// Resolve returns the handlers that should receive an event of the given
// type: every handler explicitly registered for that type, in registration
// order, followed by every wildcard handler. A routing miss (no handlers at all) returns an empty,
// non-nil slice — callers treat this as a no-op, not an error.
func (r *Router) Resolve(eventType string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	specific, _ := r.byType.Get(eventType)
	out := make([]Handler, 0, len(specific)+len(r.wildcard))
	out = append(out, specific...)
	out = append(out, r.wildcard...)
	return out
}

// RegisteredTypes returns the event types with at least one specific
// (non-wildcard) handler registered.
func (r *Router) RegisteredTypes() []string {
	return r.byType.Keys()
}
