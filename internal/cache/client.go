package cache

import (
	"context"

	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/model"
)

// CachedClient fronts an inventory client with the fresh cache: reads are
// served from cache inside the TTL, writes trigger strategy invalidation.
// It implements inventory.Client and is stacked on top of the resilient
// client, so a cache hit skips the breaker and retry machinery entirely.
type CachedClient struct {
	inner inventory.Client
	cache *Cache
}

var _ inventory.Client = (*CachedClient)(nil)

// NewCachedClient wraps inner with cache.
func NewCachedClient(inner inventory.Client, cache *Cache) *CachedClient {
	return &CachedClient{inner: inner, cache: cache}
}

func (c *CachedClient) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	key := SiteKey(id)
	if site, ok := GetJSON[model.Site](ctx, c.cache, key); ok {
		return site, nil
	}
	site, err := c.inner.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}
	PutJSON(ctx, c.cache, key, site)
	return site, nil
}

func (c *CachedClient) ListSites(ctx context.Context, params inventory.ListParams) (*model.SiteList, error) {
	key := SiteListKey(params.Encode())
	if list, ok := GetJSON[model.SiteList](ctx, c.cache, key); ok {
		return list, nil
	}
	list, err := c.inner.ListSites(ctx, params)
	if err != nil {
		return nil, err
	}
	PutJSON(ctx, c.cache, key, list)
	return list, nil
}

func (c *CachedClient) CreateSite(ctx context.Context, site *model.Site) (*model.Site, error) {
	created, err := c.inner.CreateSite(ctx, site)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateWrite(ctx, SiteKey(created.ID))
	return created, nil
}

func (c *CachedClient) UpdateSite(ctx context.Context, id int64, site *model.Site) (*model.Site, error) {
	updated, err := c.inner.UpdateSite(ctx, id, site)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateWrite(ctx, SiteKey(id))
	return updated, nil
}

func (c *CachedClient) DeleteSite(ctx context.Context, id int64) error {
	if err := c.inner.DeleteSite(ctx, id); err != nil {
		return err
	}
	c.cache.InvalidateWrite(ctx, SiteKey(id))
	return nil
}

func (c *CachedClient) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	key := DeviceKey(id)
	if device, ok := GetJSON[model.Device](ctx, c.cache, key); ok {
		return device, nil
	}
	device, err := c.inner.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	PutJSON(ctx, c.cache, key, device)
	return device, nil
}

func (c *CachedClient) ListDevices(ctx context.Context, params inventory.ListParams) (*model.DeviceList, error) {
	key := DeviceListKey(params.Encode())
	if list, ok := GetJSON[model.DeviceList](ctx, c.cache, key); ok {
		return list, nil
	}
	list, err := c.inner.ListDevices(ctx, params)
	if err != nil {
		return nil, err
	}
	PutJSON(ctx, c.cache, key, list)
	return list, nil
}

func (c *CachedClient) CreateDevice(ctx context.Context, device *model.Device) (*model.Device, error) {
	created, err := c.inner.CreateDevice(ctx, device)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateWrite(ctx, DeviceKey(created.ID))
	return created, nil
}

func (c *CachedClient) UpdateDevice(ctx context.Context, id int64, device *model.Device) (*model.Device, error) {
	updated, err := c.inner.UpdateDevice(ctx, id, device)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateWrite(ctx, DeviceKey(id))
	return updated, nil
}

func (c *CachedClient) DeleteDevice(ctx context.Context, id int64) error {
	if err := c.inner.DeleteDevice(ctx, id); err != nil {
		return err
	}
	c.cache.InvalidateWrite(ctx, DeviceKey(id))
	return nil
}
