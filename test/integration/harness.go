// Package integration provides a reusable test harness for end-to-end
// integration testing of the NetGate gateway. It starts a full HTTP server
// in front of a fake inventory upstream, with in-memory stores and an
// optional test JWT issuer.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
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

// TestHarness encapsulates a fully wired gateway instance with a fake
// inventory upstream for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Upstream is the fake inventory service the gateway talks to.
	Upstream *mockInventory

	// Internal components exposed for advanced test scenarios.
	Orders     *order.Service
	Access     *tenant.Access
	Workflows  *workflow.Manager
	Resilient  *inventory.ResilientClient
	FreshCache *cache.Cache

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	tenants         map[string]int64
	retry           config.RetryConfig
	breaker         config.CircuitBreakerConfig
	degradationTTL  time.Duration
	cacheTTL        time.Duration
	cacheStrategy   string
	handlerTimeout  time.Duration
	identityEnabled bool
	upstreamEnabled bool
}

// WithTenants sets the application-tenant to inventory-tenant mappings.
func WithTenants(mappings map[string]int64) HarnessOption {
	return func(c *harnessConfig) {
		c.tenants = mappings
	}
}

// WithRetry sets the upstream retry loop. Jitter is disabled so call counts
// and timing stay deterministic.
func WithRetry(maxAttempts int, initialDelay time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.retry = config.RetryConfig{
			MaxAttempts:  maxAttempts,
			InitialDelay: config.Duration(initialDelay),
			MaxDelay:     config.Duration(10 * initialDelay),
			Multiplier:   2.0,
			Jitter:       false,
		}
	}
}

// WithBreaker sets the circuit breaker thresholds and cooldown.
func WithBreaker(failureThreshold, successThreshold int, cooldown time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.breaker = config.CircuitBreakerConfig{
			FailureThreshold: failureThreshold,
			SuccessThreshold: successThreshold,
			Cooldown:         config.Duration(cooldown),
		}
	}
}

// WithCacheStrategy sets the fresh-cache invalidation strategy.
func WithCacheStrategy(strategy string) HarnessOption {
	return func(c *harnessConfig) {
		c.cacheStrategy = strategy
	}
}

// WithCacheTTL sets the fresh-cache entry lifetime.
func WithCacheTTL(ttl time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.cacheTTL = ttl
	}
}

// WithDegradationTTL sets how long stale reads stay servable.
func WithDegradationTTL(ttl time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.degradationTTL = ttl
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithIdentity enables JWT verification backed by the harness token issuer.
func WithIdentity() HarnessOption {
	return func(c *harnessConfig) {
		c.identityEnabled = true
	}
}

// WithoutUpstream starts the gateway with no inventory token, the state a
// fresh deployment is in before credentials are provisioned.
func WithoutUpstream() HarnessOption {
	return func(c *harnessConfig) {
		c.upstreamEnabled = false
	}
}

// NewTestHarness creates and starts a full gateway test instance. The server
// and the fake upstream are cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		tenants: map[string]int64{"t1": 10, "t2": 20},
		retry: config.RetryConfig{
			MaxAttempts:  1,
			InitialDelay: config.Duration(1 * time.Millisecond),
			MaxDelay:     config.Duration(10 * time.Millisecond),
			Multiplier:   2.0,
			Jitter:       false,
		},
		breaker: config.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Cooldown:         config.Duration(50 * time.Millisecond),
		},
		degradationTTL:  5 * time.Minute,
		cacheTTL:        60 * time.Second,
		cacheStrategy:   config.StrategyWriteBack,
		handlerTimeout:  10 * time.Second,
		upstreamEnabled: true,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{t: t}
	ctx := context.Background()
	logger := zap.NewNop()

	// Step 1: Start the fake inventory upstream.
	h.Upstream = newMockInventory(t)

	// Step 2: Build config around it. The token is omitted when the test
	// wants an unconfigured upstream.
	token := ""
	if hc.upstreamEnabled {
		token = upstreamToken
	}

	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = config.Duration(hc.handlerTimeout)
	h.cfg.Inventory.URL = h.Upstream.URL()
	h.cfg.Inventory.Token = token
	h.cfg.Inventory.Timeout = config.Duration(5 * time.Second)
	h.cfg.Inventory.Retry = hc.retry
	h.cfg.Inventory.CircuitBreaker = hc.breaker
	h.cfg.Inventory.Degradation.TTL = config.Duration(hc.degradationTTL)
	h.cfg.Cache.TTL = config.Duration(hc.cacheTTL)
	h.cfg.Cache.Strategy = hc.cacheStrategy
	h.cfg.Tenants.Mappings = hc.tenants

	// Step 3: Token issuer, when identity mode is on.
	if hc.identityEnabled {
		h.issuer = newTokenIssuer(t)
		h.cfg.Identity = config.IdentityConfig{
			Enabled:      true,
			Issuer:       h.issuer.Issuer(),
			Audience:     h.issuer.Audience(),
			JWKSURL:      h.issuer.JWKSURL(),
			JWKSCacheTTL: config.Duration(1 * time.Hour),
			Algorithms:   []string{"RS256"},
		}
	}

	// Step 4: Telemetry. Each harness gets its own Prometheus registry so
	// multiple harnesses can coexist in one test binary.
	metrics := observability.InitMetrics(prometheus.NewRegistry())

	doc, err := apidoc.Load(ctx)
	if err != nil {
		t.Fatalf("load API document: %v", err)
	}

	// Step 5: Tenant mapping.
	mappingStore := tenant.NewStaticStore(h.cfg.Tenants.Mappings)
	mapping := tenant.NewMapping(mappingStore)

	// Step 6: Inventory client stack.
	var rawClient inventory.Client
	if hc.upstreamEnabled {
		rawClient, err = inventory.NewClient(h.cfg.Inventory, logger)
		if err != nil {
			t.Fatalf("build inventory client: %v", err)
		}
	} else {
		rawClient = inventory.NewUnconfiguredClient()
	}
	h.Resilient = inventory.NewResilientClient(rawClient, h.cfg.Inventory, logger, metrics)

	h.FreshCache, err = cache.New(cache.NewMemoryStore(h.cfg.Cache.MaxEntries), h.cfg.Cache, logger, metrics)
	if err != nil {
		t.Fatalf("build cache: %v", err)
	}
	client := cache.NewCachedClient(h.Resilient, h.FreshCache)

	h.Access = tenant.NewAccess(client, mapping)

	// Step 7: Order pipeline.
	registry := order.NewRegistry(h.cfg.Orders.DefaultType)
	registry.Register(order.NewSiteProcessorWith(
		order.NewValidator(),
		order.NewTransformer(),
		order.NewEnricherFromConfig(h.cfg.Orders.Enrichment),
	))
	h.Workflows = workflow.NewManager()
	h.Orders = order.NewService(registry, h.Workflows, h.Access, order.EnrichmentFromConfig(h.cfg.Orders.Enrichment), logger, metrics)

	// Step 8: Router.
	var authenticate func(http.Handler) http.Handler
	if hc.identityEnabled {
		jwks := transport.NewJWKSClient(h.cfg.Identity.JWKSURL, h.cfg.Identity.JWKSCacheTTL.Std(), logger)
		authenticate = transport.JWTAuthenticator(h.cfg.Identity, jwks)
	}

	readiness := observability.ReadinessChecks{
		TenantMappingsLoaded: func() bool {
			all, err := mappingStore.All(context.Background())
			return err == nil && len(all) > 0
		},
		APIDocumentLoaded: doc.Loaded,
		CacheStore:        h.FreshCache,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Logger:       logger,
		Orders:       h.Orders,
		Access:       h.Access,
		Health:       h.healthSnapshot,
		Metrics:      h.metricsReport,
		Readiness:    readiness,
		APIDoc:       doc.Handler(),
		Authenticate: authenticate,
	})

	// Step 9: Start the test server with the same middleware wrapping the
	// real server uses.
	h.server = httptest.NewServer(metrics.MetricsMiddleware(observability.TracingMiddleware(router)))
	t.Cleanup(h.server.Close)

	return h
}

// healthSnapshot mirrors the production health view: degraded only while
// the breaker is Open.
func (h *TestHarness) healthSnapshot() observability.HealthSnapshot {
	counts := h.Resilient.BreakerCounts()
	snap := observability.HealthSnapshot{
		Degraded: !h.Resilient.Healthy(),
		Upstream: &observability.UpstreamHealth{
			Configured: h.cfg.UpstreamConfigured(),
		},
		Breaker: &observability.BreakerHealth{
			State:     counts.State.String(),
			Failures:  counts.ConsecutiveFailures,
			Successes: counts.HalfOpenSuccesses,
		},
	}
	if snap.Upstream.Configured {
		snap.Upstream.URL = h.cfg.Inventory.URL
	}
	return snap
}

func (h *TestHarness) metricsReport(ctx context.Context) transport.MetricsReport {
	counts := h.Resilient.BreakerCounts()
	return transport.MetricsReport{
		Inventory: h.Resilient.Metrics(),
		Breaker: transport.BreakerReport{
			State:               counts.State.String(),
			ConsecutiveFailures: counts.ConsecutiveFailures,
			HalfOpenSuccesses:   counts.HalfOpenSuccesses,
		},
		Cache: h.FreshCache.Stats(ctx),
	}
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT with the given claims. The harness must
// have been built with WithIdentity.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	h.t.Helper()
	if h.issuer == nil {
		h.t.Fatal("harness built without WithIdentity, no token issuer available")
	}
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	h.t.Helper()
	if h.issuer == nil {
		h.t.Fatal("harness built without WithIdentity, no token issuer available")
	}
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs a GET request identified as the given tenant.
func (h *TestHarness) GET(path, tenantID string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, tenantID, nil)
}

// GETWithHeaders performs a GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, tenantID string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, tenantID, headers)
}

// POST performs a POST request with a JSON body, identified as the given
// tenant.
func (h *TestHarness) POST(path string, body any, tenantID string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, tenantID, nil)
}

// POSTWithHeaders performs a POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, tenantID string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, tenantID, headers)
}

// PATCH performs a PATCH request with a JSON body.
func (h *TestHarness) PATCH(path string, body any, tenantID string) *http.Response {
	h.t.Helper()
	return h.doRequest("PATCH", path, body, tenantID, nil)
}

// DELETE performs a DELETE request.
func (h *TestHarness) DELETE(path, tenantID string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, tenantID, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, tenantID string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if tenantID != "" {
		req.Header.Set("X-Tenant-Id", tenantID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Shared wire shapes and fixtures ---

// errorEnvelope matches the gateway's error response body.
type errorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

// orderListEnvelope matches the GET /orders response body.
type orderListEnvelope struct {
	Count   int           `json:"count"`
	Results []orderRecord `json:"results"`
}

// orderRecord matches the workflow record the order endpoints return.
type orderRecord struct {
	OrderID      string `json:"order_id"`
	TenantID     string `json:"tenant_id"`
	OrderType    string `json:"order_type"`
	SiteName     string `json:"site_name"`
	State        string `json:"state"`
	InventoryID  *int64 `json:"inventory_id"`
	ErrorMessage string `json:"error_message"`
}

// orderResult matches the POST /orders/site response body.
type orderResult struct {
	OrderID     string `json:"order_id"`
	TenantID    string `json:"tenant_id"`
	InventoryID *int64 `json:"inventory_id"`
	State       string `json:"state"`
	SiteName    string `json:"site_name"`
}

// orderStatus matches the GET /orders/{id}/status response body.
type orderStatus struct {
	OrderID     string `json:"order_id"`
	State       string `json:"state"`
	InventoryID *int64 `json:"inventory_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// siteListEnvelope matches the proxied site list response body.
type siteListEnvelope struct {
	Count   int              `json:"count"`
	Results []map[string]any `json:"results"`
}

// SiteOrderFixture returns a valid order request body for the given site name.
func SiteOrderFixture(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "Integration test site",
		"address":     "1 Test Plaza, Testville",
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func int64Ptr(v int64) *int64 { return &v }
