package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// UpstreamHealth describes the inventory connection in the health response.
type UpstreamHealth struct {
	Configured bool   `json:"configured"`
	URL        string `json:"url,omitempty"`
}

// BreakerHealth describes the circuit breaker in the health response.
type BreakerHealth struct {
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

// HealthSnapshot is the point-in-time gateway state the health endpoint
// reports. Degraded means the breaker is Open and upstream calls are being
// rejected.
type HealthSnapshot struct {
	Degraded bool
	Upstream *UpstreamHealth
	Breaker  *BreakerHealth
}

// HealthResponse is the JSON response for the health endpoint.
type HealthResponse struct {
	Status    string          `json:"status"`
	Service   string          `json:"service"`
	Version   string          `json:"version"`
	Commit    string          `json:"commit"`
	Timestamp string          `json:"timestamp"`
	Upstream  *UpstreamHealth `json:"upstream,omitempty"`
	Breaker   *BreakerHealth  `json:"breaker,omitempty"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the result of a single readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks holds the dependency checkers for the readiness endpoint.
type ReadinessChecks struct {
	// Required checks, always run.
	TenantMappingsLoaded func() bool
	APIDocumentLoaded    func() bool

	// Optional checks, run only when non-nil.
	TenantStore HealthChecker
	CacheStore  HealthChecker
}

const checkTimeout = 2 * time.Second

// HandleHealth returns an HTTP handler for the gateway health endpoint.
// It responds 200 when healthy and 503 with status "degraded" when the
// circuit breaker reports the inventory service unreachable. An
// unconfigured upstream is not degradation; the gateway still serves
// orders metadata, metrics, and cached state.
func HandleHealth(service string, snapshot func() HealthSnapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := snapshot()

		status := "healthy"
		httpStatus := http.StatusOK
		if snap.Degraded {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    status,
			Service:   service,
			Version:   Version,
			Commit:    Commit,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Upstream:  snap.Upstream,
			Breaker:   snap.Breaker,
		})
	}
}

// HandleReady returns an HTTP handler for the readiness endpoint.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]CheckResult)
		var mu sync.Mutex
		var wg sync.WaitGroup

		record := func(name string, result CheckResult) {
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}

		// Required: tenant mappings registered.
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			if checks.TenantMappingsLoaded != nil && checks.TenantMappingsLoaded() {
				record("tenant_mappings", CheckResult{
					Status:    "ok",
					LatencyMs: time.Since(start).Milliseconds(),
				})
			} else {
				record("tenant_mappings", CheckResult{
					Status:    "error",
					LatencyMs: time.Since(start).Milliseconds(),
					Error:     "no tenant mappings loaded",
				})
			}
		}()

		// Required: API document loaded.
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			if checks.APIDocumentLoaded != nil && checks.APIDocumentLoaded() {
				record("api_document", CheckResult{
					Status:    "ok",
					LatencyMs: time.Since(start).Milliseconds(),
				})
			} else {
				record("api_document", CheckResult{
					Status:    "error",
					LatencyMs: time.Since(start).Milliseconds(),
					Error:     "API document not loaded",
				})
			}
		}()

		// Optional: tenant mapping store.
		if checks.TenantStore != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				record("tenant_store", runCheck(r.Context(), checks.TenantStore))
			}()
		}

		// Optional: cache store.
		if checks.CacheStore != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				record("cache_store", runCheck(r.Context(), checks.CacheStore))
			}()
		}

		wg.Wait()

		// Determine overall status.
		status := "ready"
		httpStatus := http.StatusOK
		for _, result := range results {
			if result.Status != "ok" {
				status = "not_ready"
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: status,
			Checks: results,
		})
	}
}

// runCheck executes a health check with a per-check timeout.
func runCheck(parent context.Context, checker HealthChecker) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := checker.HealthCheck(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{
			Status:    "error",
			LatencyMs: latency,
			Error:     err.Error(),
		}
	}
	return CheckResult{
		Status:    "ok",
		LatencyMs: latency,
	}
}
