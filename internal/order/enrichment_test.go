package order

import (
	"reflect"
	"testing"
	"time"

	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/model"
)

func fullEnrichmentData() EnrichmentData {
	return EnrichmentData{
		Geographic: &GeographicData{
			Latitude:  model.Float64(40.7128),
			Longitude: model.Float64(-74.0060),
			Country:   "USA",
			Region:    "North America",
		},
		Contact: &ContactData{
			Name:  "John Doe",
			Email: "john@example.com",
			Phone: "+1-555-0123",
		},
		Business: &BusinessMetadata{
			CostCenter:  "CC-123",
			ProjectCode: "PROJ-ABC",
			Environment: "production",
			Priority:    "critical",
		},
		Tags:     []string{"custom-tag"},
		Metadata: map[string]string{"datacenter": "dc-east"},
	}
}

func TestEnricher_siteComputedFields(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()

	site := e.EnrichSite(model.Site{Name: "Test Site", Status: model.SiteStatusActive}, &data)

	if site.Latitude == nil || *site.Latitude != 40.7128 {
		t.Fatalf("latitude = %v, want 40.7128", site.Latitude)
	}
	if site.Longitude == nil || *site.Longitude != -74.0060 {
		t.Fatalf("longitude = %v, want -74.0060", site.Longitude)
	}
	if site.Description != "Environment: production, Country: USA" {
		t.Fatalf("description = %q", site.Description)
	}
	if site.Facility != "FAC-CC-123" {
		t.Fatalf("facility = %q, want FAC-CC-123", site.Facility)
	}
}

func TestEnricher_siteExistingFieldsKept(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()

	site := e.EnrichSite(model.Site{
		Name:        "Test Site",
		Description: "Existing description",
		Facility:    "DC-9",
		Latitude:    model.Float64(1.5),
		Longitude:   model.Float64(2.5),
		ContactName: "Jane Roe",
	}, &data)

	if site.Description != "Existing description" {
		t.Fatalf("description overwritten: %q", site.Description)
	}
	if site.Facility != "DC-9" {
		t.Fatalf("facility overwritten: %q", site.Facility)
	}
	if *site.Latitude != 1.5 || *site.Longitude != 2.5 {
		t.Fatalf("coordinates overwritten: %v / %v", *site.Latitude, *site.Longitude)
	}
	if site.ContactName != "Jane Roe" {
		t.Fatalf("contact name overwritten: %q", site.ContactName)
	}
	// Unset contact fields still fill.
	if site.ContactEmail != "john@example.com" {
		t.Fatalf("contact email = %q", site.ContactEmail)
	}
}

func TestEnricher_facilityUppercasesCostCenter(t *testing.T) {
	e := NewEnricher()
	data := EnrichmentData{Business: &BusinessMetadata{CostCenter: "cc-789"}}

	site := e.EnrichSite(model.Site{Name: "S"}, &data)

	if site.Facility != "FAC-CC-789" {
		t.Fatalf("facility = %q, want FAC-CC-789", site.Facility)
	}
	hasTag := false
	for _, tag := range site.Tags {
		if tag == "cost-center-cc-789" {
			hasTag = true
		}
	}
	if !hasTag {
		t.Fatalf("missing cost-center tag in %v", site.Tags)
	}
}

func TestEnricher_siteCustomFields(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()

	site := e.EnrichSite(model.Site{
		Name:         "Test Site",
		CustomFields: map[string]any{"existing_field": "keep"},
	}, &data)

	want := map[string]any{
		"existing_field": "keep",
		"cost_center":    "CC-123",
		"project_code":   "PROJ-ABC",
		"environment":    "production",
		"priority":       "critical",
		"datacenter":     "dc-east",
	}
	if !reflect.DeepEqual(site.CustomFields, want) {
		t.Fatalf("custom fields = %v, want %v", site.CustomFields, want)
	}
}

func TestEnricher_metadataOverridesBusinessKeys(t *testing.T) {
	e := NewEnricher()
	data := EnrichmentData{
		Business: &BusinessMetadata{Environment: "production"},
		Metadata: map[string]string{"environment": "qa"},
	}

	site := e.EnrichSite(model.Site{Name: "S"}, &data)

	if site.CustomFields["environment"] != "qa" {
		t.Fatalf("environment = %v, want qa", site.CustomFields["environment"])
	}
}

func TestEnricher_metadataAppliesWithoutBusiness(t *testing.T) {
	e := NewEnricher()
	data := EnrichmentData{Metadata: map[string]string{"datacenter": "dc-west"}}

	site := e.EnrichSite(model.Site{Name: "S"}, &data)

	if site.CustomFields["datacenter"] != "dc-west" {
		t.Fatalf("custom fields = %v", site.CustomFields)
	}
}

func TestEnricher_siteTags(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()

	site := e.EnrichSite(model.Site{
		Name:   "Test Site",
		Status: model.SiteStatusActive,
		Tags:   []string{"existing"},
	}, &data)

	want := []string{
		"cost-center-cc-123",
		"country-usa",
		"critical",
		"custom-tag",
		"enriched",
		"existing",
		"netgate",
		"priority-critical",
		"prod",
		"region-north america",
		"status-active",
	}
	if !reflect.DeepEqual(site.Tags, want) {
		t.Fatalf("tags = %v, want %v", site.Tags, want)
	}
}

func TestEnricher_siteNilDataStillTagged(t *testing.T) {
	e := NewEnricher()

	site := e.EnrichSite(model.Site{Name: "S", Status: model.SiteStatusPlanned}, nil)

	want := []string{"enriched", "netgate", "status-planned"}
	if !reflect.DeepEqual(site.Tags, want) {
		t.Fatalf("tags = %v, want %v", site.Tags, want)
	}
	if site.Description != "" || site.Facility != "" {
		t.Fatalf("nil data should not fill fields: %q / %q", site.Description, site.Facility)
	}
}

func TestEnricher_siteIdempotent(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()
	base := model.Site{
		Name:         "Test Site",
		Status:       model.SiteStatusActive,
		Tags:         []string{"existing"},
		CustomFields: map[string]any{"existing_field": "keep"},
	}

	once := e.EnrichSite(base, &data)
	twice := e.EnrichSite(once, &data)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("enrichment not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestEnricher_inputNotMutated(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()
	base := model.Site{
		Name:         "Test Site",
		Status:       model.SiteStatusActive,
		Tags:         []string{"existing"},
		CustomFields: map[string]any{"existing_field": "keep"},
	}
	snapshot := model.Site{
		Name:         "Test Site",
		Status:       model.SiteStatusActive,
		Tags:         []string{"existing"},
		CustomFields: map[string]any{"existing_field": "keep"},
	}

	e.EnrichSite(base, &data)

	if !reflect.DeepEqual(base, snapshot) {
		t.Fatalf("input mutated: %+v", base)
	}
}

func TestEnricher_deviceComputedFields(t *testing.T) {
	e := NewEnricher()
	e.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	data := fullEnrichmentData()

	device := e.EnrichDevice(model.Device{}, &data)

	if device.Name != "DEV-PROJ-ABC-20240115" {
		t.Fatalf("name = %q, want DEV-PROJ-ABC-20240115", device.Name)
	}
	if device.AssetTag != "AT-CC-123" {
		t.Fatalf("asset tag = %q, want AT-CC-123", device.AssetTag)
	}
}

func TestEnricher_deviceExistingNameKept(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()

	device := e.EnrichDevice(model.Device{Name: "edge-router-1", AssetTag: "AT-0001"}, &data)

	if device.Name != "edge-router-1" || device.AssetTag != "AT-0001" {
		t.Fatalf("identity overwritten: %q / %q", device.Name, device.AssetTag)
	}
}

func TestEnricher_deviceTags(t *testing.T) {
	e := NewEnricher()
	data := fullEnrichmentData()

	device := e.EnrichDevice(model.Device{Name: "edge-router-1", Status: model.SiteStatusActive}, &data)

	// Devices get no geographic or status tags.
	want := []string{
		"cost-center-cc-123",
		"critical",
		"custom-tag",
		"enriched",
		"netgate",
		"priority-critical",
		"prod",
	}
	if !reflect.DeepEqual(device.Tags, want) {
		t.Fatalf("tags = %v, want %v", device.Tags, want)
	}
}

func TestEnricher_deviceIdempotent(t *testing.T) {
	e := NewEnricher()
	e.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	data := fullEnrichmentData()

	once := e.EnrichDevice(model.Device{}, &data)
	twice := e.EnrichDevice(once, &data)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("enrichment not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestEnricher_computeStatus(t *testing.T) {
	e := NewEnricher()
	cases := []struct {
		environment string
		want        string
	}{
		{"production", model.SiteStatusActive},
		{"PRODUCTION", model.SiteStatusActive},
		{"staging", model.SiteStatusStaging},
		{"development", model.SiteStatusPlanned},
		{"qa", ""},
		{"", ""},
	}
	for _, tc := range cases {
		data := EnrichmentData{Business: &BusinessMetadata{Environment: tc.environment}}
		if got := e.ComputeStatus(&data); got != tc.want {
			t.Fatalf("ComputeStatus(%q) = %q, want %q", tc.environment, got, tc.want)
		}
	}
	if got := e.ComputeStatus(nil); got != "" {
		t.Fatalf("ComputeStatus(nil) = %q", got)
	}
	if got := e.ComputeStatus(&EnrichmentData{}); got != "" {
		t.Fatalf("ComputeStatus(no business) = %q", got)
	}
}

func TestEnricher_customTagRules(t *testing.T) {
	e := NewEnricherWithConfig(
		[]string{"managed"},
		map[string][]string{"qa": {"qa-pool"}},
	)
	data := EnrichmentData{Business: &BusinessMetadata{Environment: "qa"}}

	site := e.EnrichSite(model.Site{Name: "S"}, &data)

	want := []string{"managed", "qa-pool"}
	if !reflect.DeepEqual(site.Tags, want) {
		t.Fatalf("tags = %v, want %v", site.Tags, want)
	}
}

func TestNewEnricherFromConfig(t *testing.T) {
	e := NewEnricherFromConfig(config.EnrichmentConfig{
		EnvironmentTags: map[string][]string{"qa": {"qa-pool"}},
	})
	data := EnrichmentData{Business: &BusinessMetadata{Environment: "qa"}}

	site := e.EnrichSite(model.Site{Name: "S"}, &data)

	want := []string{"enriched", "netgate", "qa-pool"}
	if !reflect.DeepEqual(site.Tags, want) {
		t.Fatalf("tags = %v, want %v", site.Tags, want)
	}
}

func TestNewEnricherFromConfig_fallsBackToStandardRules(t *testing.T) {
	e := NewEnricherFromConfig(config.EnrichmentConfig{})
	data := EnrichmentData{Business: &BusinessMetadata{Environment: "production"}}

	site := e.EnrichSite(model.Site{Name: "S"}, &data)

	want := []string{"critical", "enriched", "netgate", "prod"}
	if !reflect.DeepEqual(site.Tags, want) {
		t.Fatalf("tags = %v, want %v", site.Tags, want)
	}
}

func TestMergeEnrichmentSources(t *testing.T) {
	first := EnrichmentData{
		Contact:  &ContactData{Name: "First Contact"},
		Tags:     []string{"b-tag"},
		Metadata: map[string]string{"shared": "first", "only-first": "1"},
	}
	second := EnrichmentData{
		Geographic: &GeographicData{Country: "USA"},
		Contact:    &ContactData{Name: "Second Contact"},
		Business:   &BusinessMetadata{Environment: "staging"},
		Tags:       []string{"a-tag", "b-tag"},
		Metadata:   map[string]string{"shared": "second"},
	}

	merged := MergeEnrichmentSources(first, second)

	if merged.Contact == nil || merged.Contact.Name != "First Contact" {
		t.Fatalf("contact = %+v, want the first source's", merged.Contact)
	}
	if merged.Geographic == nil || merged.Geographic.Country != "USA" {
		t.Fatalf("geographic = %+v", merged.Geographic)
	}
	if merged.Business == nil || merged.Business.Environment != "staging" {
		t.Fatalf("business = %+v", merged.Business)
	}
	if !reflect.DeepEqual(merged.Tags, []string{"a-tag", "b-tag"}) {
		t.Fatalf("tags = %v", merged.Tags)
	}
	wantMeta := map[string]string{"shared": "second", "only-first": "1"}
	if !reflect.DeepEqual(merged.Metadata, wantMeta) {
		t.Fatalf("metadata = %v, want %v", merged.Metadata, wantMeta)
	}
}

func TestMergeEnrichmentSources_empty(t *testing.T) {
	merged := MergeEnrichmentSources()
	if merged.Geographic != nil || merged.Contact != nil || merged.Business != nil {
		t.Fatalf("empty merge carries sections: %+v", merged)
	}
	if len(merged.Tags) != 0 || len(merged.Metadata) != 0 {
		t.Fatalf("empty merge carries tags or metadata: %+v", merged)
	}
}

func TestEnrichmentFromConfig(t *testing.T) {
	cfg := config.EnrichmentConfig{
		Country:      "US",
		Region:       "us-east",
		City:         "Ashburn",
		Latitude:     model.Float64(38.9),
		Longitude:    model.Float64(-77.4),
		ContactName:  "NetOps Team",
		ContactEmail: "netops@example.com",
		CostCenter:   "CC-1001",
		ProjectCode:  "NETGATE",
		Environment:  "production",
		Priority:     "high",
		Tags:         []string{"gateway"},
		Metadata:     map[string]string{"team": "core"},
	}

	data := EnrichmentFromConfig(cfg)

	if data.Geographic == nil || data.Geographic.Country != "US" || *data.Geographic.Latitude != 38.9 {
		t.Fatalf("geographic = %+v", data.Geographic)
	}
	if data.Contact == nil || data.Contact.Name != "NetOps Team" {
		t.Fatalf("contact = %+v", data.Contact)
	}
	if data.Business == nil || data.Business.CostCenter != "CC-1001" || data.Business.Priority != "high" {
		t.Fatalf("business = %+v", data.Business)
	}
	if !reflect.DeepEqual(data.Tags, []string{"gateway"}) {
		t.Fatalf("tags = %v", data.Tags)
	}
	wantMeta := map[string]string{"team": "core", "city": "Ashburn"}
	if !reflect.DeepEqual(data.Metadata, wantMeta) {
		t.Fatalf("metadata = %v, want %v", data.Metadata, wantMeta)
	}
}

func TestEnrichmentFromConfig_empty(t *testing.T) {
	data := EnrichmentFromConfig(config.EnrichmentConfig{})
	if data.Geographic != nil || data.Contact != nil || data.Business != nil {
		t.Fatalf("empty config should leave sections nil: %+v", data)
	}
	if len(data.Metadata) != 0 {
		t.Fatalf("metadata = %v", data.Metadata)
	}
}
