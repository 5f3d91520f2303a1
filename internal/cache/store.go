package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the backing storage for cached entries. Implementations must be
// safe for concurrent use. Values are opaque JSON blobs; the Cache front
// owns the codec and the counters.
type Store interface {
	// Get returns the stored value, or found=false on miss or expiry.
	Get(ctx context.Context, key Key) (value []byte, found bool, err error)
	// Set stores the value and reports how many entries were evicted to
	// make room.
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) (evicted int, err error)
	// Delete removes the given keys and reports how many existed.
	Delete(ctx context.Context, keys ...Key) (int, error)
	// DeleteKind removes every entry of the given kind.
	DeleteKind(ctx context.Context, kind KeyKind) (int, error)
	// Len reports the number of stored entries, expired ones included.
	Len(ctx context.Context) (int, error)
	// Clear removes everything.
	Clear(ctx context.Context) error
	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with TTL expiry and FIFO eviction.
// Insertion order is tracked explicitly; overwriting an existing key keeps
// its original position. Suitable for single-instance deployments and tests.
type MemoryStore struct {
	maxEntries int

	mu      sync.RWMutex
	entries map[Key]memEntry
	order   []Key // oldest first
}

// NewMemoryStore builds a store evicting the oldest entry once maxEntries
// is exceeded. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[Key]memEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry meanwhile.
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
			s.removeFromOrder(key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, value []byte, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		s.entries[key] = memEntry{value: value, expiresAt: time.Now().Add(ttl)}
		return 0, nil
	}

	evicted := 0
	if s.maxEntries > 0 {
		for len(s.entries) >= s.maxEntries && len(s.order) > 0 {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.entries, oldest)
			evicted++
		}
	}

	s.entries[key] = memEntry{value: value, expiresAt: time.Now().Add(ttl)}
	s.order = append(s.order, key)
	return evicted, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			s.removeFromOrder(key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteKind(_ context.Context, kind KeyKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if key.Kind == kind {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		kept := s.order[:0]
		for _, key := range s.order {
			if key.Kind != kind {
				kept = append(kept, key)
			}
		}
		s.order = kept
	}
	return removed, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[Key]memEntry)
	s.order = nil
	return nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// removeFromOrder drops key from the insertion-order slice. Callers must
// hold s.mu.
func (s *MemoryStore) removeFromOrder(key Key) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
