package transport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/internal/observability"
	"github.com/pitabwire/netgate/internal/order"
	"github.com/pitabwire/netgate/internal/tenant"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Orders *order.Service
	Access *tenant.Access

	// Health and Metrics feed the health and JSON metrics endpoints with
	// live gateway state.
	Health    func() observability.HealthSnapshot
	Metrics   func(ctx context.Context) MetricsReport
	Readiness observability.ReadinessChecks

	// APIDoc serves the gateway's own OpenAPI document. Prometheus serves
	// the exposition endpoint. Authenticate is the optional JWT middleware;
	// nil disables token verification.
	APIDoc       http.Handler
	Prometheus   http.Handler
	Authenticate func(http.Handler) http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, metrics, and the API document bypass the
// tenant and authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(RequestLogging(deps.Logger))

	// Public routes.
	r.Get("/health", observability.HandleHealth("netgate", deps.Health))
	r.Get("/health/ready", observability.HandleReady(deps.Readiness))
	r.Get("/metrics", handleMetrics(deps.Metrics))
	if deps.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics/prometheus", deps.Prometheus)
	}
	if deps.APIDoc != nil {
		r.Method(http.MethodGet, "/openapi.json", deps.APIDoc)
	}

	// Tenant routes.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(TenantHeader)
		r.Use(auth)
		r.Use(BodyLimit)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout.Std()))

		r.Post("/orders/site", handleOrderCreateSite(deps.Orders))
		r.Get("/orders", handleOrderList(deps.Orders))
		r.Get("/orders/{orderId}/status", handleOrderStatus(deps.Orders))
		r.Post("/orders/{orderId}/cancel", handleOrderCancel(deps.Orders))

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Get("/sites", handleSiteList(deps.Access))
			r.Post("/sites", handleSiteCreate(deps.Access))
			r.Get("/sites/{siteId}", handleSiteGet(deps.Access))
			r.Patch("/sites/{siteId}", handleSiteUpdate(deps.Access))
			r.Delete("/sites/{siteId}", handleSiteDelete(deps.Access))

			r.Get("/devices", handleDeviceList(deps.Access))
			r.Post("/devices", handleDeviceCreate(deps.Access))
			r.Get("/devices/{deviceId}", handleDeviceGet(deps.Access))
			r.Patch("/devices/{deviceId}", handleDeviceUpdate(deps.Access))
			r.Delete("/devices/{deviceId}", handleDeviceDelete(deps.Access))
		})
	})

	return r
}
