package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/pitabwire/netgate/model"
)

func TestStaticStore_resolve(t *testing.T) {
	s := NewStaticStore(map[string]int64{"tenant1": 10, "tenant2": 20})
	ctx := context.Background()

	id, ok, err := s.Resolve(ctx, "tenant1")
	if err != nil || !ok {
		t.Fatalf("Resolve: ok=%v err=%v", ok, err)
	}
	if id != 10 {
		t.Fatalf("id = %d, want 10", id)
	}

	if _, ok, _ := s.Resolve(ctx, "nobody"); ok {
		t.Fatal("unknown tenant resolved")
	}
}

func TestStaticStore_seedIsCopied(t *testing.T) {
	seed := map[string]int64{"tenant1": 10}
	s := NewStaticStore(seed)
	seed["tenant1"] = 99

	id, _, _ := s.Resolve(context.Background(), "tenant1")
	if id != 10 {
		t.Fatalf("store shares the seed map, id = %d", id)
	}
}

func TestStaticStore_allReturnsCopy(t *testing.T) {
	s := NewStaticStore(map[string]int64{"tenant1": 10})
	ctx := context.Background()

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	all["tenant1"] = 99

	id, _, _ := s.Resolve(ctx, "tenant1")
	if id != 10 {
		t.Fatal("All leaked the internal map")
	}
}

func TestStaticStore_registerAndRemove(t *testing.T) {
	s := NewStaticStore(nil)
	ctx := context.Background()

	s.Register("tenant9", 90)
	if id, ok, _ := s.Resolve(ctx, "tenant9"); !ok || id != 90 {
		t.Fatalf("after Register: id=%d ok=%v", id, ok)
	}

	s.Remove("tenant9")
	if _, ok, _ := s.Resolve(ctx, "tenant9"); ok {
		t.Fatal("removed tenant still resolves")
	}
}

type failingMappingStore struct{}

var errMappingDown = errors.New("mapping store down")

func (failingMappingStore) Resolve(context.Context, string) (int64, bool, error) {
	return 0, false, errMappingDown
}

func (failingMappingStore) All(context.Context) (map[string]int64, error) {
	return nil, errMappingDown
}

func TestMapping_resolveKnown(t *testing.T) {
	m := NewMapping(NewStaticStore(map[string]int64{"tenant1": 10}))

	id, err := m.Resolve(context.Background(), "tenant1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != 10 {
		t.Fatalf("id = %d, want 10", id)
	}
}

func TestMapping_unknownTenantIsUnauthorized(t *testing.T) {
	m := NewMapping(NewStaticStore(map[string]int64{"tenant1": 10}))

	_, err := m.Resolve(context.Background(), "nobody")
	if err == nil {
		t.Fatal("expected error")
	}
	var envelope *model.ErrorEnvelope
	if !errors.As(err, &envelope) || envelope.Code != model.ErrUnauthorized {
		t.Fatalf("err = %v, want UNAUTHORIZED envelope", err)
	}
}

func TestMapping_storeErrorIsNotUnauthorized(t *testing.T) {
	m := NewMapping(failingMappingStore{})

	_, err := m.Resolve(context.Background(), "tenant1")
	if !errors.Is(err, errMappingDown) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	var envelope *model.ErrorEnvelope
	if errors.As(err, &envelope) {
		t.Fatal("store outage reported as an authorization decision")
	}
}

func TestMapping_known(t *testing.T) {
	m := NewMapping(NewStaticStore(map[string]int64{"tenant1": 10}))
	ctx := context.Background()

	if !m.Known(ctx, "tenant1") {
		t.Error("tenant1 unknown")
	}
	if m.Known(ctx, "nobody") {
		t.Error("nobody known")
	}
	if NewMapping(failingMappingStore{}).Known(ctx, "tenant1") {
		t.Error("failing store reads as known")
	}
}
