package payment

import (
	"fmt"
	"sort"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

// Registry holds the explicitly constructed handler set for one service
// instance, indexed by handler id. It is built once at startup and injected
// into the checkout service; there is no package-level instance.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, handler := range handlers {
		id := handler.ID()
		if id == "" {
			return nil, fmt.Errorf("payment handler with empty id")
		}
		if _, exists := r.handlers[id]; exists {
			return nil, fmt.Errorf("duplicate payment handler id %q", id)
		}
		r.handlers[id] = handler
		r.order = append(r.order, id)
	}
	return r, nil
}

// Get returns the handler registered under id.
func (r *Registry) Get(id string) (Handler, bool) {
	handler, ok := r.handlers[id]
	return handler, ok
}

// Descriptors lists the capability advertisements of all registered handlers
// in registration order, for discovery clients.
func (r *Registry) Descriptors() []ucp.HandlerDescriptor {
	descriptors := make([]ucp.HandlerDescriptor, 0, len(r.order))
	for _, id := range r.order {
		descriptors = append(descriptors, r.handlers[id].Descriptor())
	}
	return descriptors
}

// Select picks the handler for a payment attempt. Candidates are the shop's
// configured handlers ordered by ascending priority, skipping disabled rows,
// ids with no registered handler, and handlers without credentials. A
// requested method restricts the match to that handler id; an empty request
// takes the first eligible candidate. No match yields ErrNoHandlerAvailable.
func (r *Registry) Select(configs []models.PaymentHandlerConfig, requestedHandlerID string) (Handler, error) {
	sorted := append([]models.PaymentHandlerConfig(nil), configs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	for _, cfg := range sorted {
		if !cfg.Enabled {
			continue
		}
		handler, ok := r.handlers[cfg.HandlerID]
		if !ok || !handler.Configured() {
			continue
		}
		if requestedHandlerID != "" && handler.ID() != requestedHandlerID {
			continue
		}
		return handler, nil
	}
	return nil, ErrNoHandlerAvailable
}
