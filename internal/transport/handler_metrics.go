package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/pitabwire/netgate/internal/cache"
	"github.com/pitabwire/netgate/internal/inventory"
)

// BreakerReport describes the circuit breaker in the metrics report.
type BreakerReport struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	HalfOpenSuccesses   int    `json:"half_open_successes"`
}

// MetricsReport is the aggregated operational state served by the JSON
// metrics endpoint. Prometheus exposition lives on its own route; this one
// exists for humans and simple dashboards.
type MetricsReport struct {
	Inventory inventory.MetricsSnapshot `json:"inventory"`
	Breaker   BreakerReport             `json:"breaker"`
	Cache     cache.Stats               `json:"cache"`
	Timestamp string                    `json:"timestamp"`
}

func handleMetrics(report func(ctx context.Context) MetricsReport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := report(r.Context())
		rep.Timestamp = time.Now().UTC().Format(time.RFC3339)
		WriteJSON(w, http.StatusOK, rep)
	}
}
