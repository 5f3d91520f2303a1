package inventory

import (
	"context"

	"github.com/pitabwire/netgate/model"
)

// NewUnconfiguredClient returns a Client that fails every call with a
// config-kind error. It stands in for the HTTP transport when no API token
// is present, so the gateway still starts and serves health, metrics, and
// order metadata.
func NewUnconfiguredClient() Client {
	return unconfiguredClient{}
}

type unconfiguredClient struct{}

func errUnconfigured() error {
	return configError("inventory upstream not configured: set INVENTORY_TOKEN", nil)
}

func (unconfiguredClient) GetSite(context.Context, int64) (*model.Site, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) ListSites(context.Context, ListParams) (*model.SiteList, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) CreateSite(context.Context, *model.Site) (*model.Site, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) UpdateSite(context.Context, int64, *model.Site) (*model.Site, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) DeleteSite(context.Context, int64) error {
	return errUnconfigured()
}

func (unconfiguredClient) GetDevice(context.Context, int64) (*model.Device, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) ListDevices(context.Context, ListParams) (*model.DeviceList, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) CreateDevice(context.Context, *model.Device) (*model.Device, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) UpdateDevice(context.Context, int64, *model.Device) (*model.Device, error) {
	return nil, errUnconfigured()
}

func (unconfiguredClient) DeleteDevice(context.Context, int64) error {
	return errUnconfigured()
}
