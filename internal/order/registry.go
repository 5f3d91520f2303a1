package order

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/model"
)

// Payload is an inbound order payload. Implementations identify their
// order type and name the resource they create.
type Payload interface {
	OrderType() string
	ResourceName() string
}

// Processor handles one order type through the processing pipeline.
// Validate and Transform see the raw payload; the remaining steps
// operate on the inventory representation.
type Processor interface {
	// OrderType returns the order type identifier this processor handles.
	OrderType() string

	// Validate checks the payload. A failure here means no workflow is
	// ever created for the order.
	Validate(payload Payload) error

	// Transform maps the payload onto an inventory payload for the
	// resolved inventory tenant.
	Transform(payload Payload, inventoryTenant *int64) (model.Site, error)

	// EnrichRequest enriches the payload before submission.
	EnrichRequest(site model.Site, data *EnrichmentData) model.Site

	// Submit creates the resource through the tenant access layer.
	Submit(ctx context.Context, access *tenant.Access, appTenant string, site model.Site) (model.Site, error)

	// EnrichResource enriches the created resource.
	EnrichResource(site model.Site, data *EnrichmentData) model.Site
}

// Registry routes order types to their processors. An order submitted
// without a type falls back to the default type.
type Registry struct {
	mu          sync.RWMutex
	processors  map[string]Processor
	defaultType string
}

// NewRegistry returns a Registry with the given default order type. An
// empty default falls back to site orders.
func NewRegistry(defaultType string) *Registry {
	if defaultType == "" {
		defaultType = model.OrderTypeSite
	}
	return &Registry{
		processors:  make(map[string]Processor),
		defaultType: defaultType,
	}
}

// Register adds a processor under its order type, replacing any previous
// registration for that type.
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[p.OrderType()] = p
}

// Get returns the processor for an order type.
func (r *Registry) Get(orderType string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[orderType]
	return p, ok
}

// Resolve returns the processor for an order type, applying the default
// when the type is empty. An unregistered type is a validation error.
func (r *Registry) Resolve(orderType string) (Processor, error) {
	if orderType == "" {
		orderType = r.DefaultType()
	}
	p, ok := r.Get(orderType)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("No processor registered for order type: %s", orderType))
	}
	return p, nil
}

// DefaultType returns the default order type.
func (r *Registry) DefaultType() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultType
}

// Types returns the registered order types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsRegistered reports whether a processor exists for the order type.
func (r *Registry) IsRegistered(orderType string) bool {
	_, ok := r.Get(orderType)
	return ok
}
