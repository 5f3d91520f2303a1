package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/internal/workflow"
	"github.com/pitabwire/netgate/model"
)

var errNotStubbed = errors.New("not stubbed")

// scriptedClient implements inventory.Client with a scriptable create
// and records every upstream call.
type scriptedClient struct {
	mu         sync.Mutex
	calls      []string
	createSite func(site *model.Site) (*model.Site, error)
}

func (c *scriptedClient) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, method)
}

func (c *scriptedClient) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *scriptedClient) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	c.record("GetSite")
	return nil, errNotStubbed
}

func (c *scriptedClient) ListSites(ctx context.Context, params inventory.ListParams) (*model.SiteList, error) {
	c.record("ListSites")
	return nil, errNotStubbed
}

func (c *scriptedClient) CreateSite(ctx context.Context, site *model.Site) (*model.Site, error) {
	c.record("CreateSite")
	if c.createSite == nil {
		return nil, errNotStubbed
	}
	return c.createSite(site)
}

func (c *scriptedClient) UpdateSite(ctx context.Context, id int64, site *model.Site) (*model.Site, error) {
	c.record("UpdateSite")
	return nil, errNotStubbed
}

func (c *scriptedClient) DeleteSite(ctx context.Context, id int64) error {
	c.record("DeleteSite")
	return errNotStubbed
}

func (c *scriptedClient) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	c.record("GetDevice")
	return nil, errNotStubbed
}

func (c *scriptedClient) ListDevices(ctx context.Context, params inventory.ListParams) (*model.DeviceList, error) {
	c.record("ListDevices")
	return nil, errNotStubbed
}

func (c *scriptedClient) CreateDevice(ctx context.Context, device *model.Device) (*model.Device, error) {
	c.record("CreateDevice")
	return nil, errNotStubbed
}

func (c *scriptedClient) UpdateDevice(ctx context.Context, id int64, device *model.Device) (*model.Device, error) {
	c.record("UpdateDevice")
	return nil, errNotStubbed
}

func (c *scriptedClient) DeleteDevice(ctx context.Context, id int64) error {
	c.record("DeleteDevice")
	return errNotStubbed
}

func newTestService(client inventory.Client) (*Service, *workflow.Manager) {
	mapping := tenant.NewMapping(tenant.NewStaticStore(map[string]int64{
		"tenant1": 10,
		"tenant2": 20,
	}))
	access := tenant.NewAccess(client, mapping)
	registry := NewRegistry("site")
	registry.Register(NewSiteProcessor())
	workflows := workflow.NewManager()
	enrichment := EnrichmentData{
		Business: &BusinessMetadata{Environment: "production", CostCenter: "CC-1"},
		Tags:     []string{"gateway"},
	}
	return NewService(registry, workflows, access, enrichment, nil, nil), workflows
}

func assertEnvelopeCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a %s error", code)
	}
	var envelope *model.ErrorEnvelope
	if !errors.As(err, &envelope) {
		t.Fatalf("expected an error envelope, got %v", err)
	}
	if envelope.Code != code {
		t.Fatalf("code = %s, want %s", envelope.Code, code)
	}
}

func TestService_processOrderHappyPath(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	var submitted model.Site
	client.createSite = func(site *model.Site) (*model.Site, error) {
		submitted = *site
		created := *site
		created.ID = 123
		return &created, nil
	}
	svc, workflows := newTestService(client)

	result, err := svc.ProcessOrder(ctx, "tenant1", "", model.CreateSiteOrder{
		Name:    "Data Center East",
		Address: "123 Main St",
	})
	if err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}

	if result.OrderID == "" {
		t.Fatal("empty order id")
	}
	if result.State != model.OrderCompleted {
		t.Fatalf("state = %s, want Completed", result.State)
	}
	if result.InventoryID == nil || *result.InventoryID != 123 {
		t.Fatalf("inventory id = %v, want 123", result.InventoryID)
	}
	if result.TenantID != "tenant1" || result.SiteName != "Data Center East" {
		t.Fatalf("result = %+v", result)
	}

	// The submitted payload carries the mapped tenant and the transform
	// plus request enrichment output.
	if submitted.Tenant == nil || *submitted.Tenant != 10 {
		t.Fatalf("submitted tenant = %v, want 10", submitted.Tenant)
	}
	if submitted.Slug != "data-center-east" {
		t.Fatalf("submitted slug = %q", submitted.Slug)
	}
	if submitted.PhysicalAddress != "123 Main St" || submitted.ShippingAddress != "123 Main St" {
		t.Fatalf("submitted addresses = %q / %q", submitted.PhysicalAddress, submitted.ShippingAddress)
	}
	tags := map[string]bool{}
	for _, tag := range submitted.Tags {
		tags[tag] = true
	}
	for _, want := range []string{"netgate", "order-portal", "enriched", "prod", "gateway", "status-planned"} {
		if !tags[want] {
			t.Fatalf("submitted tags missing %q: %v", want, submitted.Tags)
		}
	}

	record, ok := workflows.Get(result.OrderID)
	if !ok {
		t.Fatal("workflow record missing")
	}
	if record.State != model.OrderCompleted {
		t.Fatalf("workflow state = %s", record.State)
	}
	if record.InventoryID == nil || *record.InventoryID != 123 {
		t.Fatalf("workflow inventory id = %v", record.InventoryID)
	}
	if record.OrderType != "site" || record.SiteName != "Data Center East" {
		t.Fatalf("workflow record = %+v", record)
	}
}

func TestService_validationFailureCreatesNoWorkflow(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	svc, workflows := newTestService(client)

	_, err := svc.ProcessOrder(ctx, "tenant1", "", model.CreateSiteOrder{Name: ""})

	assertEnvelopeCode(t, err, model.ErrValidationError)
	if workflows.Len() != 0 {
		t.Fatalf("workflow count = %d, want 0", workflows.Len())
	}
	if calls := client.recorded(); len(calls) != 0 {
		t.Fatalf("upstream called: %v", calls)
	}
}

func TestService_unknownOrderTypeRejected(t *testing.T) {
	ctx := context.Background()
	svc, workflows := newTestService(&scriptedClient{})

	_, err := svc.ProcessOrder(ctx, "tenant1", "network", model.CreateSiteOrder{Name: "X"})

	assertEnvelopeCode(t, err, model.ErrValidationError)
	if workflows.Len() != 0 {
		t.Fatalf("workflow count = %d, want 0", workflows.Len())
	}
}

func TestService_unknownTenantRejectedBeforeWorkflow(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	svc, workflows := newTestService(client)

	_, err := svc.ProcessOrder(ctx, "ghost", "", model.CreateSiteOrder{Name: "Valid Site"})

	assertEnvelopeCode(t, err, model.ErrUnauthorized)
	if workflows.Len() != 0 {
		t.Fatalf("workflow count = %d, want 0", workflows.Len())
	}
	if calls := client.recorded(); len(calls) != 0 {
		t.Fatalf("upstream called: %v", calls)
	}
}

func TestService_submitFailureMarksWorkflowFailed(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	client.createSite = func(*model.Site) (*model.Site, error) {
		return nil, &inventory.Error{Kind: inventory.KindUpstream, StatusCode: 500, Message: "inventory exploded"}
	}
	svc, workflows := newTestService(client)

	_, err := svc.ProcessOrder(ctx, "tenant1", "", model.CreateSiteOrder{Name: "Doomed Site"})

	var invErr *inventory.Error
	if !errors.As(err, &invErr) || invErr.Kind != inventory.KindUpstream {
		t.Fatalf("expected the upstream error to surface, got %v", err)
	}

	orders := workflows.ListByTenant("tenant1")
	if len(orders) != 1 {
		t.Fatalf("order count = %d, want 1", len(orders))
	}
	if orders[0].State != model.OrderFailed {
		t.Fatalf("state = %s, want Failed", orders[0].State)
	}
	if orders[0].ErrorMessage == "" {
		t.Fatal("error message not recorded")
	}
	if orders[0].InventoryID != nil {
		t.Fatalf("inventory id = %v, want nil", orders[0].InventoryID)
	}
}

func TestService_orderStatus(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	client.createSite = func(site *model.Site) (*model.Site, error) {
		created := *site
		created.ID = 55
		return &created, nil
	}
	svc, _ := newTestService(client)

	result, err := svc.ProcessOrder(ctx, "tenant1", "", model.CreateSiteOrder{Name: "Status Site"})
	if err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}

	status, err := svc.OrderStatus(ctx, "tenant1", result.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if status.State != model.OrderCompleted {
		t.Fatalf("state = %s", status.State)
	}
	if status.InventoryID == nil || *status.InventoryID != 55 {
		t.Fatalf("inventory id = %v", status.InventoryID)
	}
	if _, err := time.Parse(time.RFC3339, status.CreatedAt); err != nil {
		t.Fatalf("created_at %q not RFC3339: %v", status.CreatedAt, err)
	}

	_, err = svc.OrderStatus(ctx, "tenant2", result.OrderID)
	assertEnvelopeCode(t, err, model.ErrUnauthorized)

	_, err = svc.OrderStatus(ctx, "tenant1", "missing-order")
	assertEnvelopeCode(t, err, model.ErrNotFound)
}

func TestService_cancelOrder(t *testing.T) {
	ctx := context.Background()
	svc, workflows := newTestService(&scriptedClient{})

	pending := workflows.CreateOrder("tenant1", "site", "Pending Site")
	cancelled, err := svc.CancelOrder(ctx, "tenant1", pending.OrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.State != model.OrderCancelled {
		t.Fatalf("state = %s, want Cancelled", cancelled.State)
	}

	other := workflows.CreateOrder("tenant1", "site", "Other Site")
	_, err = svc.CancelOrder(ctx, "tenant2", other.OrderID)
	assertEnvelopeCode(t, err, model.ErrUnauthorized)

	_, err = svc.CancelOrder(ctx, "tenant1", "missing-order")
	assertEnvelopeCode(t, err, model.ErrNotFound)
}

func TestService_cancelCompletedOrderRejected(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	client.createSite = func(site *model.Site) (*model.Site, error) {
		created := *site
		created.ID = 1
		return &created, nil
	}
	svc, _ := newTestService(client)

	result, err := svc.ProcessOrder(ctx, "tenant1", "", model.CreateSiteOrder{Name: "Done Site"})
	if err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}

	_, err = svc.CancelOrder(ctx, "tenant1", result.OrderID)
	assertEnvelopeCode(t, err, model.ErrInvalidTransition)
}

func TestService_listOrders(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	client.createSite = func(site *model.Site) (*model.Site, error) {
		created := *site
		created.ID = 9
		return &created, nil
	}
	svc, _ := newTestService(client)

	for _, name := range []string{"First Site", "Second Site"} {
		if _, err := svc.ProcessOrder(ctx, "tenant1", "", model.CreateSiteOrder{Name: name}); err != nil {
			t.Fatalf("ProcessOrder(%s): %v", name, err)
		}
	}
	if _, err := svc.ProcessOrder(ctx, "tenant2", "", model.CreateSiteOrder{Name: "Other Tenant Site"}); err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}

	orders := svc.ListOrders(ctx, "tenant1")
	if len(orders) != 2 {
		t.Fatalf("order count = %d, want 2", len(orders))
	}
	for _, o := range orders {
		if o.TenantID != "tenant1" {
			t.Fatalf("foreign order listed: %+v", o)
		}
	}

	if got := svc.ListOrders(ctx, "ghost"); len(got) != 0 {
		t.Fatalf("ghost tenant orders = %d, want 0", len(got))
	}
}

func TestService_explicitSiteType(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{}
	client.createSite = func(site *model.Site) (*model.Site, error) {
		created := *site
		created.ID = 2
		return &created, nil
	}
	svc, _ := newTestService(client)

	result, err := svc.ProcessOrder(ctx, "tenant1", "site", model.CreateSiteOrder{Name: "Typed Site"})
	if err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}
	if result.State != model.OrderCompleted {
		t.Fatalf("state = %s", result.State)
	}
}
