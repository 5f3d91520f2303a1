package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/internal/observability"
	"github.com/pitabwire/netgate/model"
)

// ResilientClient wraps the raw inventory client with retry, circuit
// breaking, call metrics, and stale-read degradation. It implements Client,
// so callers cannot tell it from the raw transport.
type ResilientClient struct {
	client  Client
	retry   RetryConfig
	breaker *CircuitBreaker
	metrics *APIMetrics
	cache   *DegradationCache
	obs     *observability.Metrics
	logger  *zap.Logger
}

// NewResilientClient assembles the resilience stack around client. obs may
// be nil when Prometheus export is not wired in.
func NewResilientClient(client Client, cfg config.InventoryConfig, logger *zap.Logger, obs *observability.Metrics) *ResilientClient {
	rc := &ResilientClient{
		client: client,
		retry: RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay.Std(),
			MaxDelay:     cfg.Retry.MaxDelay.Std(),
			Multiplier:   cfg.Retry.Multiplier,
			Jitter:       cfg.Retry.Jitter,
		}.normalized(),
		breaker: NewCircuitBreaker(BreakerConfig{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
			Cooldown:         cfg.CircuitBreaker.Cooldown.Std(),
		}),
		metrics: NewAPIMetrics(),
		cache:   NewDegradationCache(cfg.Degradation.TTL.Std()),
		obs:     obs,
		logger:  logger,
	}
	rc.breaker.OnStateChange = func(from, to BreakerState) {
		logger.Warn("circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if obs != nil {
			obs.SetCircuitBreakerState(float64(to))
			obs.RecordBreakerTransition(to.String())
		}
	}
	return rc
}

// --- sites ---

func (rc *ResilientClient) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	if !rc.allow(ctx, "site") {
		if s, age, ok := rc.cache.GetSite(id); ok {
			rc.servedStale(ctx, "site", age)
			return s, nil
		}
		return nil, unavailableError()
	}
	site, err := execute(ctx, rc, "site", "get", func(ctx context.Context) (*model.Site, error) {
		return rc.client.GetSite(ctx, id)
	})
	if err != nil {
		if s, age, ok := rc.cache.GetSite(id); ok {
			rc.servedStale(ctx, "site", age)
			return s, nil
		}
		return nil, err
	}
	rc.cache.PutSite(site)
	return site, nil
}

func (rc *ResilientClient) ListSites(ctx context.Context, params ListParams) (*model.SiteList, error) {
	if !rc.allow(ctx, "site_list") {
		if l, age, ok := rc.cache.GetSiteList(params); ok {
			rc.servedStale(ctx, "site_list", age)
			return l, nil
		}
		return nil, unavailableError()
	}
	list, err := execute(ctx, rc, "site", "list", func(ctx context.Context) (*model.SiteList, error) {
		return rc.client.ListSites(ctx, params)
	})
	if err != nil {
		if l, age, ok := rc.cache.GetSiteList(params); ok {
			rc.servedStale(ctx, "site_list", age)
			return l, nil
		}
		return nil, err
	}
	rc.cache.PutSiteList(params, list)
	return list, nil
}

func (rc *ResilientClient) CreateSite(ctx context.Context, site *model.Site) (*model.Site, error) {
	if !rc.allow(ctx, "site") {
		return nil, unavailableError()
	}
	created, err := execute(ctx, rc, "site", "create", func(ctx context.Context) (*model.Site, error) {
		return rc.client.CreateSite(ctx, site)
	})
	if err != nil {
		return nil, err
	}
	// Later reads of the new site can fall back to this copy.
	rc.cache.PutSite(created)
	return created, nil
}

func (rc *ResilientClient) UpdateSite(ctx context.Context, id int64, site *model.Site) (*model.Site, error) {
	if !rc.allow(ctx, "site") {
		return nil, unavailableError()
	}
	updated, err := execute(ctx, rc, "site", "update", func(ctx context.Context) (*model.Site, error) {
		return rc.client.UpdateSite(ctx, id, site)
	})
	if err != nil {
		return nil, err
	}
	rc.cache.PutSite(updated)
	return updated, nil
}

func (rc *ResilientClient) DeleteSite(ctx context.Context, id int64) error {
	if !rc.allow(ctx, "site") {
		return unavailableError()
	}
	_, err := execute(ctx, rc, "site", "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rc.client.DeleteSite(ctx, id)
	})
	return err
}

// --- devices ---

func (rc *ResilientClient) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	if !rc.allow(ctx, "device") {
		if d, age, ok := rc.cache.GetDevice(id); ok {
			rc.servedStale(ctx, "device", age)
			return d, nil
		}
		return nil, unavailableError()
	}
	device, err := execute(ctx, rc, "device", "get", func(ctx context.Context) (*model.Device, error) {
		return rc.client.GetDevice(ctx, id)
	})
	if err != nil {
		if d, age, ok := rc.cache.GetDevice(id); ok {
			rc.servedStale(ctx, "device", age)
			return d, nil
		}
		return nil, err
	}
	rc.cache.PutDevice(device)
	return device, nil
}

func (rc *ResilientClient) ListDevices(ctx context.Context, params ListParams) (*model.DeviceList, error) {
	if !rc.allow(ctx, "device_list") {
		if l, age, ok := rc.cache.GetDeviceList(params); ok {
			rc.servedStale(ctx, "device_list", age)
			return l, nil
		}
		return nil, unavailableError()
	}
	list, err := execute(ctx, rc, "device", "list", func(ctx context.Context) (*model.DeviceList, error) {
		return rc.client.ListDevices(ctx, params)
	})
	if err != nil {
		if l, age, ok := rc.cache.GetDeviceList(params); ok {
			rc.servedStale(ctx, "device_list", age)
			return l, nil
		}
		return nil, err
	}
	rc.cache.PutDeviceList(params, list)
	return list, nil
}

func (rc *ResilientClient) CreateDevice(ctx context.Context, device *model.Device) (*model.Device, error) {
	if !rc.allow(ctx, "device") {
		return nil, unavailableError()
	}
	created, err := execute(ctx, rc, "device", "create", func(ctx context.Context) (*model.Device, error) {
		return rc.client.CreateDevice(ctx, device)
	})
	if err != nil {
		return nil, err
	}
	rc.cache.PutDevice(created)
	return created, nil
}

func (rc *ResilientClient) UpdateDevice(ctx context.Context, id int64, device *model.Device) (*model.Device, error) {
	if !rc.allow(ctx, "device") {
		return nil, unavailableError()
	}
	updated, err := execute(ctx, rc, "device", "update", func(ctx context.Context) (*model.Device, error) {
		return rc.client.UpdateDevice(ctx, id, device)
	})
	if err != nil {
		return nil, err
	}
	rc.cache.PutDevice(updated)
	return updated, nil
}

func (rc *ResilientClient) DeleteDevice(ctx context.Context, id int64) error {
	if !rc.allow(ctx, "device") {
		return unavailableError()
	}
	_, err := execute(ctx, rc, "device", "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rc.client.DeleteDevice(ctx, id)
	})
	return err
}

// --- shared plumbing ---

// allow consults the breaker and records a rejection when it sheds the call.
func (rc *ResilientClient) allow(ctx context.Context, resource string) bool {
	if rc.breaker.Allow() {
		return true
	}
	rc.metrics.RecordRejection()
	if rc.obs != nil {
		rc.obs.RecordUpstreamRejection()
	}
	observability.LoggerFrom(ctx, rc.logger).Warn("circuit breaker open, rejecting upstream call",
		zap.String("resource", resource),
	)
	return false
}

// execute runs fn through the retry engine and feeds breaker and metrics
// with the outcome.
func execute[T any](ctx context.Context, rc *ResilientClient, resource, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	rc.metrics.RecordRequest()
	start := time.Now()

	cfg := rc.retry
	cfg.OnRetry = func(attempt int, err error) {
		rc.metrics.RecordRetry()
		if rc.obs != nil {
			rc.obs.RecordUpstreamRetry()
		}
		observability.LoggerFrom(ctx, rc.logger).Warn("retrying inventory call",
			zap.String("resource", resource),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	out, err := Do(ctx, cfg, fn)
	duration := time.Since(start)
	if err != nil {
		rc.breaker.RecordFailure()
		rc.metrics.RecordFailure()
		if rc.obs != nil {
			rc.obs.RecordUpstreamRequest(resource, operation, false, duration)
		}
		return out, err
	}
	rc.breaker.RecordSuccess()
	rc.metrics.RecordSuccess(duration)
	if rc.obs != nil {
		rc.obs.RecordUpstreamRequest(resource, operation, true, duration)
	}
	return out, nil
}

// servedStale logs, counts, and traces a degraded response.
func (rc *ResilientClient) servedStale(ctx context.Context, resource string, age time.Duration) {
	if rc.obs != nil {
		rc.obs.RecordDegradedServe()
	}
	observability.AnnotateSpan(ctx,
		observability.AttrDegraded.Bool(true),
		observability.AttrResource.String(resource),
		observability.AttrBreakerState.String(rc.breaker.State().String()),
	)
	observability.LoggerFrom(ctx, rc.logger).Warn("serving stale inventory data",
		zap.String("resource", resource),
		zap.Duration("age", age),
	)
}

// Metrics returns a snapshot of the upstream call counters.
func (rc *ResilientClient) Metrics() MetricsSnapshot {
	return rc.metrics.Snapshot()
}

// BreakerCounts returns the breaker state and counters for health reporting.
func (rc *ResilientClient) BreakerCounts() BreakerCounts {
	return rc.breaker.Counts()
}

// BreakerState returns the current circuit breaker state.
func (rc *ResilientClient) BreakerState() BreakerState {
	return rc.breaker.State()
}

// Healthy reports whether calls are flowing to the upstream. An open breaker
// means the gateway is degraded, not down.
func (rc *ResilientClient) Healthy() bool {
	return rc.breaker.State() != StateOpen
}

// SweepExpiredCache drops expired degradation entries and reports the count.
func (rc *ResilientClient) SweepExpiredCache() int {
	return rc.cache.ClearExpired()
}

// ClearCache drops every degradation entry.
func (rc *ResilientClient) ClearCache() {
	rc.cache.Clear()
}
