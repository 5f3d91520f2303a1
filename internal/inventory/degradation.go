package inventory

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pitabwire/netgate/model"
)

const defaultDegradationTTL = 5 * time.Minute

type staleEntry[T any] struct {
	value    T
	cachedAt time.Time
}

// DegradationCache holds the last known good responses so reads can be
// served stale while the upstream is down. Entries older than the TTL are
// treated as absent. The resilient client consults it only after the live
// path has failed or been rejected by the breaker.
type DegradationCache struct {
	ttl time.Duration

	mu          sync.RWMutex
	sites       map[int64]staleEntry[model.Site]
	devices     map[int64]staleEntry[model.Device]
	siteLists   map[string]staleEntry[model.SiteList]
	deviceLists map[string]staleEntry[model.DeviceList]
}

// NewDegradationCache builds an empty cache. Non-positive TTLs fall back to
// five minutes.
func NewDegradationCache(ttl time.Duration) *DegradationCache {
	if ttl <= 0 {
		ttl = defaultDegradationTTL
	}
	return &DegradationCache{
		ttl:         ttl,
		sites:       make(map[int64]staleEntry[model.Site]),
		devices:     make(map[int64]staleEntry[model.Device]),
		siteLists:   make(map[string]staleEntry[model.SiteList]),
		deviceLists: make(map[string]staleEntry[model.DeviceList]),
	}
}

// listKey encodes list params so that an unset filter is distinct from a
// zero value. "tenant=0" and "tenant=-" must never collide.
func listKey(resource string, p ListParams) string {
	return fmt.Sprintf("%s:tenant=%s:site=%s:limit=%s:offset=%s",
		resource, optInt64(p.TenantID), optInt64(p.SiteID), optInt(p.Limit), optInt(p.Offset))
}

func optInt64(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func (d *DegradationCache) PutSite(s *model.Site) {
	if s == nil {
		return
	}
	d.mu.Lock()
	d.sites[s.ID] = staleEntry[model.Site]{value: *s, cachedAt: time.Now()}
	d.mu.Unlock()
}

// GetSite returns a copy of the cached site and its staleness, or false if
// the entry is absent or expired.
func (d *DegradationCache) GetSite(id int64) (*model.Site, time.Duration, bool) {
	d.mu.RLock()
	e, ok := d.sites[id]
	d.mu.RUnlock()
	if !ok || d.expired(e.cachedAt) {
		return nil, 0, false
	}
	s := e.value
	return &s, time.Since(e.cachedAt), true
}

func (d *DegradationCache) PutDevice(dev *model.Device) {
	if dev == nil {
		return
	}
	d.mu.Lock()
	d.devices[dev.ID] = staleEntry[model.Device]{value: *dev, cachedAt: time.Now()}
	d.mu.Unlock()
}

func (d *DegradationCache) GetDevice(id int64) (*model.Device, time.Duration, bool) {
	d.mu.RLock()
	e, ok := d.devices[id]
	d.mu.RUnlock()
	if !ok || d.expired(e.cachedAt) {
		return nil, 0, false
	}
	dev := e.value
	return &dev, time.Since(e.cachedAt), true
}

func (d *DegradationCache) PutSiteList(p ListParams, l *model.SiteList) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.siteLists[listKey("sites", p)] = staleEntry[model.SiteList]{value: *l, cachedAt: time.Now()}
	d.mu.Unlock()
}

func (d *DegradationCache) GetSiteList(p ListParams) (*model.SiteList, time.Duration, bool) {
	d.mu.RLock()
	e, ok := d.siteLists[listKey("sites", p)]
	d.mu.RUnlock()
	if !ok || d.expired(e.cachedAt) {
		return nil, 0, false
	}
	l := e.value
	return &l, time.Since(e.cachedAt), true
}

func (d *DegradationCache) PutDeviceList(p ListParams, l *model.DeviceList) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.deviceLists[listKey("devices", p)] = staleEntry[model.DeviceList]{value: *l, cachedAt: time.Now()}
	d.mu.Unlock()
}

func (d *DegradationCache) GetDeviceList(p ListParams) (*model.DeviceList, time.Duration, bool) {
	d.mu.RLock()
	e, ok := d.deviceLists[listKey("devices", p)]
	d.mu.RUnlock()
	if !ok || d.expired(e.cachedAt) {
		return nil, 0, false
	}
	l := e.value
	return &l, time.Since(e.cachedAt), true
}

func (d *DegradationCache) expired(cachedAt time.Time) bool {
	return time.Since(cachedAt) > d.ttl
}

// ClearExpired removes every entry past the TTL and reports how many were
// dropped. Reads already skip expired entries; this reclaims the memory.
func (d *DegradationCache) ClearExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	removed += clearExpiredMap(d.sites, d.ttl)
	removed += clearExpiredMap(d.devices, d.ttl)
	removed += clearExpiredMap(d.siteLists, d.ttl)
	removed += clearExpiredMap(d.deviceLists, d.ttl)
	return removed
}

func clearExpiredMap[K comparable, T any](m map[K]staleEntry[T], ttl time.Duration) int {
	removed := 0
	for k, e := range m {
		if time.Since(e.cachedAt) > ttl {
			delete(m, k)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (d *DegradationCache) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sites = make(map[int64]staleEntry[model.Site])
	d.devices = make(map[int64]staleEntry[model.Device])
	d.siteLists = make(map[string]staleEntry[model.SiteList])
	d.deviceLists = make(map[string]staleEntry[model.DeviceList])
}

// Len counts live and expired entries across all four maps.
func (d *DegradationCache) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sites) + len(d.devices) + len(d.siteLists) + len(d.deviceLists)
}
