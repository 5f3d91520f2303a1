// Package tenant maps application tenant identifiers to inventory tenant IDs
// and enforces resource ownership on every inventory operation.
package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/pitabwire/netgate/model"
)

// MappingStore resolves application tenant identifiers to inventory tenant
// IDs. Implementations must be safe for concurrent use.
type MappingStore interface {
	// Resolve returns the inventory tenant ID for appTenant. The second
	// return reports whether a mapping exists.
	Resolve(ctx context.Context, appTenant string) (int64, bool, error)
	// All returns a copy of every known mapping.
	All(ctx context.Context) (map[string]int64, error)
}

// StaticStore is an in-memory MappingStore seeded from configuration.
type StaticStore struct {
	mu       sync.RWMutex
	mappings map[string]int64
}

// NewStaticStore copies seed into a new store.
func NewStaticStore(seed map[string]int64) *StaticStore {
	mappings := make(map[string]int64, len(seed))
	for appTenant, inventoryTenant := range seed {
		mappings[appTenant] = inventoryTenant
	}
	return &StaticStore{mappings: mappings}
}

// Resolve looks up appTenant.
func (s *StaticStore) Resolve(_ context.Context, appTenant string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inventoryTenant, ok := s.mappings[appTenant]
	return inventoryTenant, ok, nil
}

// All returns a copy of the mapping table.
func (s *StaticStore) All(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.mappings))
	for appTenant, inventoryTenant := range s.mappings {
		out[appTenant] = inventoryTenant
	}
	return out, nil
}

// Register adds or replaces a mapping.
func (s *StaticStore) Register(appTenant string, inventoryTenant int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[appTenant] = inventoryTenant
}

// Remove drops a mapping if present.
func (s *StaticStore) Remove(appTenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings, appTenant)
}

// Mapping wraps a MappingStore with the gateway's authorization contract:
// an unknown application tenant is an authorization failure, not a lookup
// miss. One shared instance backs both access control and visibility
// filtering so they can never disagree.
type Mapping struct {
	store MappingStore
}

// NewMapping wraps store.
func NewMapping(store MappingStore) *Mapping {
	return &Mapping{store: store}
}

// Resolve returns the inventory tenant for appTenant or an unauthorized
// error when no mapping exists.
func (m *Mapping) Resolve(ctx context.Context, appTenant string) (int64, error) {
	inventoryTenant, ok, err := m.store.Resolve(ctx, appTenant)
	if err != nil {
		return 0, fmt.Errorf("resolve tenant %q: %w", appTenant, err)
	}
	if !ok {
		return 0, model.NewUnauthorizedError("missing or invalid tenant ID")
	}
	return inventoryTenant, nil
}

// Known reports whether appTenant has a mapping. Store errors read as
// unknown.
func (m *Mapping) Known(ctx context.Context, appTenant string) bool {
	_, ok, err := m.store.Resolve(ctx, appTenant)
	return err == nil && ok
}
