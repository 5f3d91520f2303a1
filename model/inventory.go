package model

// Inventory site status values.
const (
	SiteStatusActive  = "active"
	SiteStatusPlanned = "planned"
	SiteStatusStaging = "staging"
	SiteStatusRetired = "retired"
)

// Site is an inventory site as exchanged with the upstream DCIM API.
// Pointer fields distinguish "unset" from zero values; the tenant pointer in
// particular drives the ownership checks in the tenant access layer.
type Site struct {
	ID              int64          `json:"id,omitempty"`
	Name            string         `json:"name"`
	Slug            string         `json:"slug,omitempty"`
	Description     string         `json:"description,omitempty"`
	Status          string         `json:"status,omitempty"`
	Region          string         `json:"region,omitempty"`
	Tenant          *int64         `json:"tenant,omitempty"`
	Facility        string         `json:"facility,omitempty"`
	PhysicalAddress string         `json:"physical_address,omitempty"`
	ShippingAddress string         `json:"shipping_address,omitempty"`
	Latitude        *float64       `json:"latitude,omitempty"`
	Longitude       *float64       `json:"longitude,omitempty"`
	ContactName     string         `json:"contact_name,omitempty"`
	ContactPhone    string         `json:"contact_phone,omitempty"`
	ContactEmail    string         `json:"contact_email,omitempty"`
	Comments        string         `json:"comments,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
	Created         string         `json:"created,omitempty"`
	LastUpdated     string         `json:"last_updated,omitempty"`
}

// Device is an inventory device.
type Device struct {
	ID           int64          `json:"id,omitempty"`
	Name         string         `json:"name"`
	DeviceType   string         `json:"device_type,omitempty"`
	Role         string         `json:"role,omitempty"`
	Site         *int64         `json:"site,omitempty"`
	Status       string         `json:"status,omitempty"`
	Tenant       *int64         `json:"tenant,omitempty"`
	Serial       string         `json:"serial,omitempty"`
	AssetTag     string         `json:"asset_tag,omitempty"`
	Comments     string         `json:"comments,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	Created      string         `json:"created,omitempty"`
	LastUpdated  string         `json:"last_updated,omitempty"`
}

// SiteList is the paginated list envelope the upstream returns for sites.
type SiteList struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Site  `json:"results"`
}

// DeviceList is the paginated list envelope for devices.
type DeviceList struct {
	Count    int      `json:"count"`
	Next     *string  `json:"next"`
	Previous *string  `json:"previous"`
	Results  []Device `json:"results"`
}

// Int64 returns a pointer to v. Convenience for tenant and site references.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
