package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/cache"
	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/internal/observability"
	"github.com/pitabwire/netgate/internal/order"
	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/internal/workflow"
	"github.com/pitabwire/netgate/model"
)

// stubInventory implements inventory.Client with per-call overrides. Calls
// without an override fail loudly so a test never silently exercises an
// unexpected path.
type stubInventory struct {
	getSite      func(id int64) (*model.Site, error)
	listSites    func(params inventory.ListParams) (*model.SiteList, error)
	createSite   func(site *model.Site) (*model.Site, error)
	updateSite   func(id int64, site *model.Site) (*model.Site, error)
	deleteSite   func(id int64) error
	getDevice    func(id int64) (*model.Device, error)
	listDevices  func(params inventory.ListParams) (*model.DeviceList, error)
	createDevice func(device *model.Device) (*model.Device, error)
	updateDevice func(id int64, device *model.Device) (*model.Device, error)
	deleteDevice func(id int64) error
}

func notStubbed(op string) error {
	return &inventory.Error{Kind: inventory.KindUpstream, Message: op + " not stubbed"}
}

func (s *stubInventory) GetSite(_ context.Context, id int64) (*model.Site, error) {
	if s.getSite == nil {
		return nil, notStubbed("GetSite")
	}
	return s.getSite(id)
}

func (s *stubInventory) ListSites(_ context.Context, params inventory.ListParams) (*model.SiteList, error) {
	if s.listSites == nil {
		return nil, notStubbed("ListSites")
	}
	return s.listSites(params)
}

func (s *stubInventory) CreateSite(_ context.Context, site *model.Site) (*model.Site, error) {
	if s.createSite == nil {
		return nil, notStubbed("CreateSite")
	}
	return s.createSite(site)
}

func (s *stubInventory) UpdateSite(_ context.Context, id int64, site *model.Site) (*model.Site, error) {
	if s.updateSite == nil {
		return nil, notStubbed("UpdateSite")
	}
	return s.updateSite(id, site)
}

func (s *stubInventory) DeleteSite(_ context.Context, id int64) error {
	if s.deleteSite == nil {
		return notStubbed("DeleteSite")
	}
	return s.deleteSite(id)
}

func (s *stubInventory) GetDevice(_ context.Context, id int64) (*model.Device, error) {
	if s.getDevice == nil {
		return nil, notStubbed("GetDevice")
	}
	return s.getDevice(id)
}

func (s *stubInventory) ListDevices(_ context.Context, params inventory.ListParams) (*model.DeviceList, error) {
	if s.listDevices == nil {
		return nil, notStubbed("ListDevices")
	}
	return s.listDevices(params)
}

func (s *stubInventory) CreateDevice(_ context.Context, device *model.Device) (*model.Device, error) {
	if s.createDevice == nil {
		return nil, notStubbed("CreateDevice")
	}
	return s.createDevice(device)
}

func (s *stubInventory) UpdateDevice(_ context.Context, id int64, device *model.Device) (*model.Device, error) {
	if s.updateDevice == nil {
		return nil, notStubbed("UpdateDevice")
	}
	return s.updateDevice(id, device)
}

func (s *stubInventory) DeleteDevice(_ context.Context, id int64) error {
	if s.deleteDevice == nil {
		return notStubbed("DeleteDevice")
	}
	return s.deleteDevice(id)
}

var _ inventory.Client = (*stubInventory)(nil)

// newTestDeps wires a full dependency set over the stub inventory client.
// Known tenants: t1 -> 10, t2 -> 20.
func newTestDeps(t *testing.T, stub *stubInventory) Dependencies {
	t.Helper()

	mapping := tenant.NewMapping(tenant.NewStaticStore(map[string]int64{
		"t1": 10,
		"t2": 20,
	}))
	access := tenant.NewAccess(stub, mapping)

	registry := order.NewRegistry(model.OrderTypeSite)
	registry.Register(order.NewSiteProcessor())
	svc := order.NewService(registry, workflow.NewManager(), access, order.EnrichmentData{}, zap.NewNop(), nil)

	return Dependencies{
		Config: config.Defaults(),
		Logger: zap.NewNop(),
		Orders: svc,
		Access: access,
		Health: func() observability.HealthSnapshot {
			return observability.HealthSnapshot{
				Upstream: &observability.UpstreamHealth{Configured: true, URL: "http://localhost:8000"},
				Breaker:  &observability.BreakerHealth{State: "Closed"},
			}
		},
		Metrics: func(context.Context) MetricsReport {
			return MetricsReport{
				Breaker: BreakerReport{State: "Closed"},
				Cache:   cache.Stats{Strategy: "CacheAside"},
			}
		},
		Readiness: observability.ReadinessChecks{
			TenantMappingsLoaded: func() bool { return true },
			APIDocumentLoaded:    func() bool { return true },
		},
	}
}

func doRequest(r http.Handler, method, path, tenant, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) model.ErrorEnvelope {
	t.Helper()
	var ee model.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&ee); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return ee
}
