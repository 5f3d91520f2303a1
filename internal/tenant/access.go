package tenant

import (
	"context"

	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/model"
)

// Access enforces tenant ownership on every inventory operation. Reads
// verify the returned resource belongs to the caller's inventory tenant,
// lists filter upstream and re-filter locally, creates force the tenant
// onto the request, and updates and deletes perform a checked get first so
// a caller can never act on another tenant's resource by guessing IDs.
//
// Denials all carry the same opaque message: whether the resource exists
// under another tenant is not the caller's business.
type Access struct {
	client  inventory.Client
	mapping *Mapping
}

// NewAccess builds the access layer over client.
func NewAccess(client inventory.Client, mapping *Mapping) *Access {
	return &Access{client: client, mapping: mapping}
}

// Mapping exposes the shared tenant mapping service.
func (a *Access) Mapping() *Mapping {
	return a.mapping
}

func denied() error {
	return model.NewUnauthorizedError("missing or invalid tenant ID")
}

func siteBelongs(site *model.Site, inventoryTenant int64) bool {
	return site != nil && site.Tenant != nil && *site.Tenant == inventoryTenant
}

func deviceBelongs(device *model.Device, inventoryTenant int64) bool {
	return device != nil && device.Tenant != nil && *device.Tenant == inventoryTenant
}

// GetSite fetches a site and verifies it belongs to the caller. A site
// with no tenant assigned is nobody's and reads as denied.
func (a *Access) GetSite(ctx context.Context, appTenant string, id int64) (*model.Site, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	site, err := a.client.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !siteBelongs(site, inventoryTenant) {
		return nil, denied()
	}
	return site, nil
}

// ListSites lists sites for the caller. The mapped tenant is sent as the
// upstream filter and applied again locally over the results.
func (a *Access) ListSites(ctx context.Context, appTenant string, params inventory.ListParams) (*model.SiteList, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	params.TenantID = &inventoryTenant

	list, err := a.client.ListSites(ctx, params)
	if err != nil {
		return nil, err
	}

	kept := list.Results[:0]
	for i := range list.Results {
		if siteBelongs(&list.Results[i], inventoryTenant) {
			kept = append(kept, list.Results[i])
		}
	}
	// Count tracks the upstream total; drop what the local filter removed.
	list.Count -= len(list.Results) - len(kept)
	if list.Count < 0 {
		list.Count = 0
	}
	list.Results = kept
	return list, nil
}

// CreateSite forces the caller's tenant onto the request, submits it, and
// verifies the created site still belongs to the caller.
func (a *Access) CreateSite(ctx context.Context, appTenant string, site *model.Site) (*model.Site, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	req := *site
	req.Tenant = &inventoryTenant

	created, err := a.client.CreateSite(ctx, &req)
	if err != nil {
		return nil, err
	}
	if !siteBelongs(created, inventoryTenant) {
		return nil, denied()
	}
	return created, nil
}

// UpdateSite performs a checked get, applies the patch, and verifies the
// updated site still belongs to the caller. A patch that moves the site to
// another tenant comes back visible here and is refused.
func (a *Access) UpdateSite(ctx context.Context, appTenant string, id int64, site *model.Site) (*model.Site, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	if _, err := a.GetSite(ctx, appTenant, id); err != nil {
		return nil, err
	}

	updated, err := a.client.UpdateSite(ctx, id, site)
	if err != nil {
		return nil, err
	}
	if !siteBelongs(updated, inventoryTenant) {
		return nil, denied()
	}
	return updated, nil
}

// DeleteSite performs a checked get before deleting.
func (a *Access) DeleteSite(ctx context.Context, appTenant string, id int64) error {
	if _, err := a.GetSite(ctx, appTenant, id); err != nil {
		return err
	}
	return a.client.DeleteSite(ctx, id)
}

// GetDevice fetches a device and verifies it belongs to the caller.
func (a *Access) GetDevice(ctx context.Context, appTenant string, id int64) (*model.Device, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	device, err := a.client.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deviceBelongs(device, inventoryTenant) {
		return nil, denied()
	}
	return device, nil
}

// ListDevices lists devices for the caller, upstream-filtered and locally
// re-filtered. A site filter in params passes through untouched.
func (a *Access) ListDevices(ctx context.Context, appTenant string, params inventory.ListParams) (*model.DeviceList, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	params.TenantID = &inventoryTenant

	list, err := a.client.ListDevices(ctx, params)
	if err != nil {
		return nil, err
	}

	kept := list.Results[:0]
	for i := range list.Results {
		if deviceBelongs(&list.Results[i], inventoryTenant) {
			kept = append(kept, list.Results[i])
		}
	}
	list.Count -= len(list.Results) - len(kept)
	if list.Count < 0 {
		list.Count = 0
	}
	list.Results = kept
	return list, nil
}

// CreateDevice forces the caller's tenant onto the request and verifies
// the result.
func (a *Access) CreateDevice(ctx context.Context, appTenant string, device *model.Device) (*model.Device, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	req := *device
	req.Tenant = &inventoryTenant

	created, err := a.client.CreateDevice(ctx, &req)
	if err != nil {
		return nil, err
	}
	if !deviceBelongs(created, inventoryTenant) {
		return nil, denied()
	}
	return created, nil
}

// UpdateDevice performs a checked get, applies the patch, and verifies the
// result still belongs to the caller.
func (a *Access) UpdateDevice(ctx context.Context, appTenant string, id int64, device *model.Device) (*model.Device, error) {
	inventoryTenant, err := a.mapping.Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}
	if _, err := a.GetDevice(ctx, appTenant, id); err != nil {
		return nil, err
	}

	updated, err := a.client.UpdateDevice(ctx, id, device)
	if err != nil {
		return nil, err
	}
	if !deviceBelongs(updated, inventoryTenant) {
		return nil, denied()
	}
	return updated, nil
}

// DeleteDevice performs a checked get before deleting.
func (a *Access) DeleteDevice(ctx context.Context, appTenant string, id int64) error {
	if _, err := a.GetDevice(ctx, appTenant, id); err != nil {
		return err
	}
	return a.client.DeleteDevice(ctx, id)
}
