package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_setAndGet(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	if _, found, _ := s.Get(ctx, SiteKey(1)); found {
		t.Fatal("empty store returned a value")
	}

	if _, err := s.Set(ctx, SiteKey(1), []byte(`{"id":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, found, err := s.Get(ctx, SiteKey(1))
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(raw) != `{"id":1}` {
		t.Fatalf("value = %s", raw)
	}
}

func TestMemoryStore_expiredEntryRemovedOnGet(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.Set(ctx, SiteKey(1), []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, found, _ := s.Get(ctx, SiteKey(1)); found {
		t.Fatal("expired entry served")
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("expired entry not removed, Len = %d", n)
	}
}

func TestMemoryStore_fifoEviction(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	s.Set(ctx, SiteKey(1), []byte("a"), time.Minute)
	s.Set(ctx, SiteKey(2), []byte("b"), time.Minute)
	s.Set(ctx, SiteKey(3), []byte("c"), time.Minute)

	evicted, err := s.Set(ctx, SiteKey(4), []byte("d"), time.Minute)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}

	// The oldest key goes first.
	if _, found, _ := s.Get(ctx, SiteKey(1)); found {
		t.Fatal("oldest entry survived eviction")
	}
	for _, id := range []int64{2, 3, 4} {
		if _, found, _ := s.Get(ctx, SiteKey(id)); !found {
			t.Fatalf("entry %d missing after eviction", id)
		}
	}
}

func TestMemoryStore_overwriteKeepsPosition(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	s.Set(ctx, SiteKey(1), []byte("a"), time.Minute)
	s.Set(ctx, SiteKey(2), []byte("b"), time.Minute)

	// Refreshing key 1 must not make it the newest entry.
	if evicted, _ := s.Set(ctx, SiteKey(1), []byte("a2"), time.Minute); evicted != 0 {
		t.Fatal("overwrite evicted an entry")
	}
	s.Set(ctx, SiteKey(3), []byte("c"), time.Minute)

	if _, found, _ := s.Get(ctx, SiteKey(1)); found {
		t.Fatal("key 1 should have been evicted as the oldest insertion")
	}
	if raw, found, _ := s.Get(ctx, SiteKey(2)); !found || string(raw) != "b" {
		t.Fatal("key 2 missing")
	}
}

func TestMemoryStore_delete(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.Set(ctx, SiteKey(1), []byte("a"), time.Minute)
	s.Set(ctx, DeviceKey(2), []byte("b"), time.Minute)

	removed, err := s.Delete(ctx, SiteKey(1), SiteKey(99))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, found, _ := s.Get(ctx, DeviceKey(2)); !found {
		t.Fatal("unrelated entry removed")
	}
}

func TestMemoryStore_deleteKind(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.Set(ctx, SiteKey(1), []byte("a"), time.Minute)
	s.Set(ctx, SiteListKey("tenant_id=10"), []byte("l1"), time.Minute)
	s.Set(ctx, SiteListKey("tenant_id=20"), []byte("l2"), time.Minute)
	s.Set(ctx, DeviceListKey("tenant_id=10"), []byte("dl"), time.Minute)

	removed, err := s.DeleteKind(ctx, KindSiteList)
	if err != nil {
		t.Fatalf("DeleteKind: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, found, _ := s.Get(ctx, SiteKey(1)); !found {
		t.Fatal("single site entry removed by list sweep")
	}
	if _, found, _ := s.Get(ctx, DeviceListKey("tenant_id=10")); !found {
		t.Fatal("device list removed by site list sweep")
	}
}

func TestMemoryStore_clearAndLen(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.Set(ctx, SiteKey(1), []byte("a"), time.Minute)
	s.Set(ctx, SiteKey(2), []byte("b"), time.Minute)
	if n, _ := s.Len(ctx); n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("Len after Clear = %d, want 0", n)
	}

	// Order bookkeeping survives a clear.
	s.Set(ctx, SiteKey(3), []byte("c"), time.Minute)
	if _, found, _ := s.Get(ctx, SiteKey(3)); !found {
		t.Fatal("store unusable after Clear")
	}
}

func TestMemoryStore_healthCheck(t *testing.T) {
	if err := NewMemoryStore(0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
