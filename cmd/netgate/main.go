// Package main is the entry point for the NetGate gateway server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/apidoc"
	"github.com/pitabwire/netgate/internal/cache"
	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/internal/observability"
	"github.com/pitabwire/netgate/internal/order"
	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/internal/transport"
	"github.com/pitabwire/netgate/internal/workflow"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "netgate", version)
	if err != nil {
		logger.Fatal("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load and validate the gateway's own API document.
	doc, err := apidoc.Load(ctx)
	if err != nil {
		logger.Fatal("API document load failed", zap.Error(err))
		return 1
	}

	// Step 5: Tenant mapping store.
	mappingStore, tenantCloser, err := buildTenantStore(ctx, cfg.Tenants, logger)
	if err != nil {
		logger.Fatal("tenant store initialization failed", zap.Error(err))
		return 1
	}
	mapping := tenant.NewMapping(mappingStore)

	// Step 6: Inventory client stack: raw transport wrapped in resilience,
	// wrapped in the fresh-results cache.
	rawClient, err := buildInventoryClient(cfg, logger)
	if err != nil {
		logger.Fatal("inventory client initialization failed", zap.Error(err))
		return 1
	}
	resilient := inventory.NewResilientClient(rawClient, cfg.Inventory, logger, metrics)

	cacheStore, cacheCloser, err := buildCacheStore(cfg.Cache, logger)
	if err != nil {
		logger.Fatal("cache store initialization failed", zap.Error(err))
		return 1
	}
	freshCache, err := cache.New(cacheStore, cfg.Cache, logger, metrics)
	if err != nil {
		logger.Fatal("cache initialization failed", zap.Error(err))
		return 1
	}
	client := cache.NewCachedClient(resilient, freshCache)

	access := tenant.NewAccess(client, mapping)

	// Step 7: Order pipeline.
	registry := order.NewRegistry(cfg.Orders.DefaultType)
	registry.Register(order.NewSiteProcessorWith(
		order.NewValidator(),
		order.NewTransformer(),
		order.NewEnricherFromConfig(cfg.Orders.Enrichment),
	))
	workflows := workflow.NewManager()
	orders := order.NewService(registry, workflows, access, order.EnrichmentFromConfig(cfg.Orders.Enrichment), logger, metrics)

	// Step 8: Build HTTP router.
	var authenticate func(http.Handler) http.Handler
	if cfg.Identity.Enabled {
		jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL.Std(), logger)
		authenticate = transport.JWTAuthenticator(cfg.Identity, jwks)
	}

	readiness := observability.ReadinessChecks{
		TenantMappingsLoaded: func() bool {
			all, err := mappingStore.All(context.Background())
			return err == nil && len(all) > 0
		},
		APIDocumentLoaded: doc.Loaded,
		CacheStore:        freshCache,
	}
	if hc, ok := mappingStore.(observability.HealthChecker); ok {
		readiness.TenantStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Orders:       orders,
		Access:       access,
		Health:       healthSnapshot(cfg, resilient),
		Metrics:      metricsReport(resilient, freshCache),
		Readiness:    readiness,
		APIDoc:       doc.Handler(),
		Prometheus:   observability.Handler(),
		Authenticate: authenticate,
	})

	// Wrap router with tracing and metrics middleware.
	handler := metrics.MetricsMiddleware(observability.TracingMiddleware(router))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	// Step 9: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	go runDegradationSweeper(bgCtx, resilient, cfg.Inventory.Degradation.TTL.Std(), logger)

	// Step 10: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Bool("upstream_configured", cfg.UpstreamConfigured()),
		zap.String("cache_strategy", cfg.Cache.Strategy),
		zap.Bool("identity_enabled", cfg.Identity.Enabled),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout.Std()
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks.
	bgCancel()

	// Close stores.
	if tenantCloser != nil {
		tenantCloser()
	}
	if cacheCloser != nil {
		cacheCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildInventoryClient creates the raw upstream transport. A missing token
// is not fatal: the gateway starts with a client that rejects every call,
// keeps serving health and metrics, and reports upstream.configured=false.
func buildInventoryClient(cfg *config.Config, logger *zap.Logger) (inventory.Client, error) {
	if !cfg.UpstreamConfigured() {
		logger.Warn("inventory token not set, upstream calls will fail",
			zap.String("url", cfg.Inventory.URL),
		)
		return inventory.NewUnconfiguredClient(), nil
	}
	return inventory.NewClient(cfg.Inventory, logger)
}

// buildTenantStore creates the tenant mapping store based on config.
func buildTenantStore(ctx context.Context, cfg config.TenantsConfig, logger *zap.Logger) (tenant.MappingStore, func(), error) {
	switch cfg.Store.Driver {
	case "static", "":
		logger.Info("using static tenant mapping store", zap.Int("mappings", len(cfg.Mappings)))
		return tenant.NewStaticStore(cfg.Mappings), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("tenant store: %s environment variable not set", cfg.Store.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("tenant store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Store.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.Store.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.Store.ConnMaxLifetime.Std()

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("tenant store: connect: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("tenant store: ping: %w", err)
		}

		store := tenant.NewPgMappingStore(pool)
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported tenant store driver: %q", cfg.Store.Driver)
	}
}

// buildCacheStore creates the fresh-cache backing store based on config.
func buildCacheStore(cfg config.CacheConfig, logger *zap.Logger) (cache.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory cache store", zap.Int("max_entries", cfg.MaxEntries))
		return cache.NewMemoryStore(cfg.MaxEntries), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("cache store: %s environment variable not set", cfg.Store.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Store.DB})
		logger.Info("using redis cache store", zap.String("addr", addr), zap.Int("db", cfg.Store.DB))
		return cache.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache store driver: %q", cfg.Store.Driver)
	}
}

// healthSnapshot builds the health endpoint's view of the gateway. The
// gateway is degraded only when the breaker is Open; an unconfigured
// upstream still serves orders metadata, metrics, and cached state.
func healthSnapshot(cfg *config.Config, resilient *inventory.ResilientClient) func() observability.HealthSnapshot {
	return func() observability.HealthSnapshot {
		counts := resilient.BreakerCounts()
		snap := observability.HealthSnapshot{
			Degraded: !resilient.Healthy(),
			Upstream: &observability.UpstreamHealth{
				Configured: cfg.UpstreamConfigured(),
			},
			Breaker: &observability.BreakerHealth{
				State:     counts.State.String(),
				Failures:  counts.ConsecutiveFailures,
				Successes: counts.HalfOpenSuccesses,
			},
		}
		if snap.Upstream.Configured {
			snap.Upstream.URL = cfg.Inventory.URL
		}
		return snap
	}
}

// metricsReport aggregates the operational counters served by the JSON
// metrics endpoint.
func metricsReport(resilient *inventory.ResilientClient, freshCache *cache.Cache) func(ctx context.Context) transport.MetricsReport {
	return func(ctx context.Context) transport.MetricsReport {
		counts := resilient.BreakerCounts()
		return transport.MetricsReport{
			Inventory: resilient.Metrics(),
			Breaker: transport.BreakerReport{
				State:               counts.State.String(),
				ConsecutiveFailures: counts.ConsecutiveFailures,
				HalfOpenSuccesses:   counts.HalfOpenSuccesses,
			},
			Cache: freshCache.Stats(ctx),
		}
	}
}

// runDegradationSweeper periodically drops expired stale-read entries so
// the degradation cache does not grow without bound between outages.
func runDegradationSweeper(ctx context.Context, resilient *inventory.ResilientClient, ttl time.Duration, logger *zap.Logger) {
	interval := ttl
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := resilient.SweepExpiredCache(); removed > 0 {
				logger.Debug("degradation cache sweep", zap.Int("removed", removed))
			}
		}
	}
}
