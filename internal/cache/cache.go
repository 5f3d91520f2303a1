package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/internal/observability"
)

// Strategy selects which keys a successful write invalidates.
type Strategy int

const (
	// StrategyNever leaves entries to expire by TTL alone.
	StrategyNever Strategy = iota
	// StrategyWriteThrough invalidates the single written key.
	StrategyWriteThrough
	// StrategyWriteBack invalidates the written key plus every list entry
	// of the same resource.
	StrategyWriteBack
	// StrategyTypeBased invalidates every list entry of the same resource.
	StrategyTypeBased
)

func (s Strategy) String() string {
	switch s {
	case StrategyNever:
		return config.StrategyNever
	case StrategyWriteThrough:
		return config.StrategyWriteThrough
	case StrategyWriteBack:
		return config.StrategyWriteBack
	case StrategyTypeBased:
		return config.StrategyTypeBased
	default:
		return "unknown"
	}
}

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case config.StrategyNever:
		return StrategyNever, nil
	case config.StrategyWriteThrough:
		return StrategyWriteThrough, nil
	case config.StrategyWriteBack, "":
		return StrategyWriteBack, nil
	case config.StrategyTypeBased:
		return StrategyTypeBased, nil
	default:
		return 0, fmt.Errorf("unknown cache strategy %q", s)
	}
}

// Cache fronts a Store with a fixed TTL, an invalidation strategy, and
// hit/miss accounting. Store failures are deliberately absorbed: a broken
// cache degrades to a slower gateway, never a failing one.
type Cache struct {
	store          Store
	ttl            time.Duration
	strategy       Strategy
	metricsEnabled bool
	obs            *observability.Metrics
	logger         *zap.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	puts          atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
}

// New builds a Cache from config. obs may be nil.
func New(store Store, cfg config.CacheConfig, logger *zap.Logger, obs *observability.Metrics) (*Cache, error) {
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL.Std()
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{
		store:          store,
		ttl:            ttl,
		strategy:       strategy,
		metricsEnabled: cfg.MetricsEnabled,
		obs:            obs,
		logger:         logger,
	}, nil
}

// Strategy returns the configured invalidation strategy.
func (c *Cache) Strategy() Strategy {
	return c.strategy
}

// GetJSON fetches and decodes a cached entry. Store errors and corrupt
// entries count as misses.
func GetJSON[T any](ctx context.Context, c *Cache, key Key) (value *T, hit bool) {
	defer func() { observability.AnnotateSpan(ctx, observability.AttrCacheHit.Bool(hit)) }()

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", zap.Stringer("key", key), zap.Error(err))
		c.recordMiss()
		return nil, false
	}
	if !found {
		c.recordMiss()
		return nil, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Warn("dropping corrupt cache entry", zap.Stringer("key", key), zap.Error(err))
		c.store.Delete(ctx, key)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &out, true
}

// PutJSON encodes and stores a value under key with the configured TTL.
func PutJSON[T any](ctx context.Context, c *Cache, key Key, value *T) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.Stringer("key", key), zap.Error(err))
		return
	}
	evicted, err := c.store.Set(ctx, key, raw, c.ttl)
	if err != nil {
		c.logger.Warn("cache set failed", zap.Stringer("key", key), zap.Error(err))
		return
	}
	c.recordPut(evicted)
}

// InvalidateWrite applies the invalidation strategy for a successful write
// to key and reports how many entries were removed.
func (c *Cache) InvalidateWrite(ctx context.Context, key Key) int {
	var removed int
	switch c.strategy {
	case StrategyNever:
		return 0
	case StrategyWriteThrough:
		removed = c.deleteKeys(ctx, key)
	case StrategyWriteBack:
		removed = c.deleteKeys(ctx, key)
		removed += c.deleteKind(ctx, key.ListKind())
	case StrategyTypeBased:
		removed = c.deleteKind(ctx, key.ListKind())
	}
	c.recordInvalidations(removed)
	return removed
}

// Flush removes every entry.
func (c *Cache) Flush(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// HealthCheck delegates to the backing store.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.store.HealthCheck(ctx)
}

// Stats is a point-in-time view of the cache counters. Rate derivation
// mirrors the upstream call metrics: an idle cache reports hit_rate 0.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	TotalRequests int64   `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
	MissRate      float64 `json:"miss_rate"`
	Puts          int64   `json:"puts"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	Entries       int     `json:"entries"`
	Strategy      string  `json:"strategy"`
}

// Stats reads the counters and the store size.
func (c *Cache) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Puts:          c.puts.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		Strategy:      c.strategy.String(),
		MissRate:      1.0,
	}
	s.TotalRequests = s.Hits + s.Misses
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.TotalRequests)
		s.MissRate = 1.0 - s.HitRate
	}
	if n, err := c.store.Len(ctx); err == nil {
		s.Entries = n
	}
	return s
}

func (c *Cache) deleteKeys(ctx context.Context, keys ...Key) int {
	n, err := c.store.Delete(ctx, keys...)
	if err != nil {
		c.logger.Warn("cache delete failed", zap.Error(err))
		return 0
	}
	return n
}

func (c *Cache) deleteKind(ctx context.Context, kind KeyKind) int {
	n, err := c.store.DeleteKind(ctx, kind)
	if err != nil {
		c.logger.Warn("cache delete kind failed", zap.Stringer("kind", kind), zap.Error(err))
		return 0
	}
	return n
}

func (c *Cache) recordHit() {
	if !c.metricsEnabled {
		return
	}
	c.hits.Add(1)
	if c.obs != nil {
		c.obs.RecordCacheHit()
	}
}

func (c *Cache) recordMiss() {
	if !c.metricsEnabled {
		return
	}
	c.misses.Add(1)
	if c.obs != nil {
		c.obs.RecordCacheMiss()
	}
}

func (c *Cache) recordPut(evicted int) {
	if !c.metricsEnabled {
		return
	}
	c.puts.Add(1)
	if evicted > 0 {
		c.evictions.Add(int64(evicted))
	}
	if c.obs != nil {
		c.obs.RecordCacheEvictions(evicted)
	}
}

func (c *Cache) recordInvalidations(n int) {
	if !c.metricsEnabled || n <= 0 {
		return
	}
	c.invalidations.Add(int64(n))
	if c.obs != nil {
		c.obs.RecordCacheInvalidations(n)
	}
}
