package order

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/model"
)

// GeographicData is location enrichment sourced from config or an
// external locator.
type GeographicData struct {
	Latitude  *float64
	Longitude *float64
	Timezone  string
	Country   string
	Region    string
}

// ContactData is ownership contact enrichment.
type ContactData struct {
	Name       string
	Email      string
	Phone      string
	Department string
}

// BusinessMetadata is organizational enrichment. Environment is one of
// production, staging or development; Priority one of critical, high,
// medium or low.
type BusinessMetadata struct {
	CostCenter  string
	ProjectCode string
	Environment string
	Priority    string
}

// EnrichmentData is the full set of data merged into inventory payloads.
type EnrichmentData struct {
	Geographic *GeographicData
	Contact    *ContactData
	Business   *BusinessMetadata
	Tags       []string
	Metadata   map[string]string
}

// EnrichmentFromConfig builds the gateway's standing enrichment data out
// of configuration. Sections with nothing set stay nil so they do not
// overwrite resource fields with empty values.
func EnrichmentFromConfig(cfg config.EnrichmentConfig) EnrichmentData {
	data := EnrichmentData{
		Tags:     append([]string(nil), cfg.Tags...),
		Metadata: make(map[string]string, len(cfg.Metadata)+1),
	}
	for k, v := range cfg.Metadata {
		data.Metadata[k] = v
	}
	if cfg.City != "" {
		data.Metadata["city"] = cfg.City
	}
	if cfg.Latitude != nil || cfg.Longitude != nil || cfg.Country != "" || cfg.Region != "" {
		data.Geographic = &GeographicData{
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
			Country:   cfg.Country,
			Region:    cfg.Region,
		}
	}
	if cfg.ContactName != "" || cfg.ContactEmail != "" || cfg.ContactPhone != "" {
		data.Contact = &ContactData{
			Name:  cfg.ContactName,
			Email: cfg.ContactEmail,
			Phone: cfg.ContactPhone,
		}
	}
	if cfg.CostCenter != "" || cfg.ProjectCode != "" || cfg.Environment != "" || cfg.Priority != "" {
		data.Business = &BusinessMetadata{
			CostCenter:  cfg.CostCenter,
			ProjectCode: cfg.ProjectCode,
			Environment: cfg.Environment,
			Priority:    cfg.Priority,
		}
	}
	return data
}

// Enricher layers computed fields, merged metadata and derived tags onto
// inventory resources. All enrichment is fill-if-unset or
// override-with-the-same-value, so applying the same data twice yields
// the same resource.
type Enricher struct {
	defaultTags     []string
	environmentTags map[string][]string
	now             func() time.Time
}

// defaultEnricherTags are stamped onto every enriched resource.
var defaultEnricherTags = []string{"netgate", "enriched"}

// NewEnricher returns an Enricher with the standard tag rules.
func NewEnricher() *Enricher {
	return NewEnricherWithConfig(
		defaultEnricherTags,
		map[string][]string{
			"production":  {"prod", "critical"},
			"staging":     {"staging", "test"},
			"development": {"dev", "non-prod"},
		},
	)
}

// NewEnricherFromConfig returns an Enricher whose environment tag rules come
// from configuration. An empty rule map falls back to the standard rules.
func NewEnricherFromConfig(cfg config.EnrichmentConfig) *Enricher {
	if len(cfg.EnvironmentTags) == 0 {
		return NewEnricher()
	}
	return NewEnricherWithConfig(defaultEnricherTags, cfg.EnvironmentTags)
}

// NewEnricherWithConfig returns an Enricher with custom default tags and
// environment tag rules.
func NewEnricherWithConfig(defaultTags []string, environmentTags map[string][]string) *Enricher {
	envTags := make(map[string][]string, len(environmentTags))
	for env, tags := range environmentTags {
		envTags[env] = append([]string(nil), tags...)
	}
	return &Enricher{
		defaultTags:     append([]string(nil), defaultTags...),
		environmentTags: envTags,
		now:             time.Now,
	}
}

// EnrichSite applies enrichment to a site and returns the result. The
// input is not mutated.
func (e *Enricher) EnrichSite(site model.Site, data *EnrichmentData) model.Site {
	if data == nil {
		data = &EnrichmentData{}
	}
	e.computeSiteFields(&site, data)
	e.mergeSiteData(&site, data)
	site.Tags = e.siteTags(site, data)
	return site
}

// EnrichDevice applies enrichment to a device. Devices get the business
// and metadata treatment but no geographic or status tags.
func (e *Enricher) EnrichDevice(device model.Device, data *EnrichmentData) model.Device {
	if data == nil {
		data = &EnrichmentData{}
	}
	e.computeDeviceFields(&device, data)
	device.CustomFields = e.mergeCustomFields(device.CustomFields, data)
	device.Tags = e.deviceTags(device, data)
	return device
}

// ComputeStatus derives the site status implied by the enrichment
// environment. The empty string means no status could be derived.
func (e *Enricher) ComputeStatus(data *EnrichmentData) string {
	if data == nil || data.Business == nil {
		return ""
	}
	switch strings.ToLower(data.Business.Environment) {
	case "production":
		return model.SiteStatusActive
	case "staging":
		return model.SiteStatusStaging
	case "development":
		return model.SiteStatusPlanned
	}
	return ""
}

// MergeEnrichmentSources combines enrichment from several sources into
// one. Geographic, contact and business sections come from the first
// source that carries them; tags are unioned; metadata from later
// sources overrides earlier entries.
func MergeEnrichmentSources(sources ...EnrichmentData) EnrichmentData {
	merged := EnrichmentData{Metadata: make(map[string]string)}
	for _, source := range sources {
		if merged.Geographic == nil {
			merged.Geographic = source.Geographic
		}
		if merged.Contact == nil {
			merged.Contact = source.Contact
		}
		if merged.Business == nil {
			merged.Business = source.Business
		}
		merged.Tags = append(merged.Tags, source.Tags...)
		for k, v := range source.Metadata {
			merged.Metadata[k] = v
		}
	}
	merged.Tags = sortedUnique(merged.Tags)
	return merged
}

func (e *Enricher) computeSiteFields(site *model.Site, data *EnrichmentData) {
	if geo := data.Geographic; geo != nil {
		if site.Latitude == nil && geo.Latitude != nil {
			site.Latitude = model.Float64(*geo.Latitude)
		}
		if site.Longitude == nil && geo.Longitude != nil {
			site.Longitude = model.Float64(*geo.Longitude)
		}
	}

	if site.Description == "" {
		var parts []string
		if data.Business != nil && data.Business.Environment != "" {
			parts = append(parts, "Environment: "+data.Business.Environment)
		}
		if data.Geographic != nil && data.Geographic.Country != "" {
			parts = append(parts, "Country: "+data.Geographic.Country)
		}
		if len(parts) > 0 {
			site.Description = strings.Join(parts, ", ")
		}
	}

	if site.Facility == "" && data.Business != nil && data.Business.CostCenter != "" {
		site.Facility = "FAC-" + strings.ToUpper(data.Business.CostCenter)
	}
}

func (e *Enricher) computeDeviceFields(device *model.Device, data *EnrichmentData) {
	b := data.Business
	if b == nil {
		return
	}
	if device.Name == "" && b.ProjectCode != "" {
		device.Name = fmt.Sprintf("DEV-%s-%s", b.ProjectCode, e.now().UTC().Format("20060102"))
	}
	if device.AssetTag == "" && b.CostCenter != "" {
		device.AssetTag = "AT-" + b.CostCenter
	}
}

func (e *Enricher) mergeSiteData(site *model.Site, data *EnrichmentData) {
	if contact := data.Contact; contact != nil {
		if site.ContactName == "" {
			site.ContactName = contact.Name
		}
		if site.ContactEmail == "" {
			site.ContactEmail = contact.Email
		}
		if site.ContactPhone == "" {
			site.ContactPhone = contact.Phone
		}
	}
	site.CustomFields = e.mergeCustomFields(site.CustomFields, data)
}

// mergeCustomFields copies the field map before writing so enrichment
// never mutates its input. Business keys land first, metadata after, so
// metadata wins on collision.
func (e *Enricher) mergeCustomFields(fields map[string]any, data *EnrichmentData) map[string]any {
	if data.Business == nil && len(data.Metadata) == 0 {
		return fields
	}
	merged := make(map[string]any, len(fields)+len(data.Metadata)+4)
	for k, v := range fields {
		merged[k] = v
	}
	if b := data.Business; b != nil {
		if b.CostCenter != "" {
			merged["cost_center"] = b.CostCenter
		}
		if b.ProjectCode != "" {
			merged["project_code"] = b.ProjectCode
		}
		if b.Environment != "" {
			merged["environment"] = b.Environment
		}
		if b.Priority != "" {
			merged["priority"] = b.Priority
		}
	}
	for k, v := range data.Metadata {
		merged[k] = v
	}
	return merged
}

func (e *Enricher) siteTags(site model.Site, data *EnrichmentData) []string {
	tags := make([]string, 0, len(site.Tags)+len(e.defaultTags)+len(data.Tags)+6)
	tags = append(tags, site.Tags...)
	tags = append(tags, e.defaultTags...)
	tags = append(tags, e.businessTags(data)...)
	if geo := data.Geographic; geo != nil {
		if geo.Country != "" {
			tags = append(tags, "country-"+strings.ToLower(geo.Country))
		}
		if geo.Region != "" {
			tags = append(tags, "region-"+strings.ToLower(geo.Region))
		}
	}
	tags = append(tags, data.Tags...)
	if site.Status != "" {
		tags = append(tags, "status-"+strings.ToLower(site.Status))
	}
	return sortedUnique(tags)
}

func (e *Enricher) deviceTags(device model.Device, data *EnrichmentData) []string {
	tags := make([]string, 0, len(device.Tags)+len(e.defaultTags)+len(data.Tags)+4)
	tags = append(tags, device.Tags...)
	tags = append(tags, e.defaultTags...)
	tags = append(tags, e.businessTags(data)...)
	tags = append(tags, data.Tags...)
	return sortedUnique(tags)
}

func (e *Enricher) businessTags(data *EnrichmentData) []string {
	b := data.Business
	if b == nil {
		return nil
	}
	var tags []string
	if b.Environment != "" {
		tags = append(tags, e.environmentTags[b.Environment]...)
	}
	if b.Priority != "" {
		tags = append(tags, "priority-"+strings.ToLower(b.Priority))
	}
	if b.CostCenter != "" {
		tags = append(tags, "cost-center-"+strings.ToLower(b.CostCenter))
	}
	return tags
}

func sortedUnique(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	sort.Strings(tags)
	out := tags[:1]
	for _, t := range tags[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}
