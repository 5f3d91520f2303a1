// Package cache caches fresh upstream reads with TTL expiry, bounded size,
// and write-triggered invalidation.
package cache

import (
	"fmt"
	"strconv"
)

// KeyKind partitions the cache keyspace by resource shape.
type KeyKind int

const (
	KindSite KeyKind = iota
	KindDevice
	KindSiteList
	KindDeviceList
)

func (k KeyKind) String() string {
	switch k {
	case KindSite:
		return "site"
	case KindDevice:
		return "device"
	case KindSiteList:
		return "site_list"
	case KindDeviceList:
		return "device_list"
	default:
		return "unknown"
	}
}

// Key identifies a cached entry. Keys are comparable and usable directly as
// map keys; String() doubles as the Redis key suffix.
type Key struct {
	Kind  KeyKind
	ID    int64  // single-resource kinds
	Query string // list kinds, canonical query encoding
}

// SiteKey keys a single site by upstream id.
func SiteKey(id int64) Key { return Key{Kind: KindSite, ID: id} }

// DeviceKey keys a single device by upstream id.
func DeviceKey(id int64) Key { return Key{Kind: KindDevice, ID: id} }

// SiteListKey keys a site list result by its canonical query string.
func SiteListKey(query string) Key { return Key{Kind: KindSiteList, Query: query} }

// DeviceListKey keys a device list result by its canonical query string.
func DeviceListKey(query string) Key { return Key{Kind: KindDeviceList, Query: query} }

func (k Key) String() string {
	switch k.Kind {
	case KindSite, KindDevice:
		return k.Kind.String() + ":" + strconv.FormatInt(k.ID, 10)
	default:
		return fmt.Sprintf("%s:%s", k.Kind, k.Query)
	}
}

// IsList reports whether the key addresses a list result.
func (k Key) IsList() bool {
	return k.Kind == KindSiteList || k.Kind == KindDeviceList
}

// ListKind returns the list kind for the key's resource. Site and SiteList
// both map to SiteList; write invalidation uses this to sweep the related
// list entries.
func (k Key) ListKind() KeyKind {
	switch k.Kind {
	case KindSite, KindSiteList:
		return KindSiteList
	default:
		return KindDeviceList
	}
}
