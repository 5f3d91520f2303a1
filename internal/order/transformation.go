package order

import (
	"strings"

	"github.com/pitabwire/netgate/model"
)

// slugMaxLength caps generated slugs at the upstream DCIM slug limit.
const slugMaxLength = 50

// Transformer maps validated orders onto inventory payloads.
type Transformer struct {
	defaultStatus string
}

// NewTransformer returns a Transformer that creates sites as planned.
func NewTransformer() *Transformer {
	return &Transformer{defaultStatus: model.SiteStatusPlanned}
}

// NewTransformerWithStatus returns a Transformer with a custom default status.
func NewTransformerWithStatus(status string) *Transformer {
	return &Transformer{defaultStatus: status}
}

// TransformSiteOrder builds the site creation payload for an order. The
// order address becomes both the physical and the shipping address;
// region, facility, coordinates and contact fields stay empty for the
// enricher to fill.
func (t *Transformer) TransformSiteOrder(o model.CreateSiteOrder, inventoryTenant *int64) model.Site {
	return model.Site{
		Name:            o.Name,
		Slug:            GenerateSlug(o.Name),
		Description:     o.Description,
		Status:          t.defaultStatus,
		Tenant:          inventoryTenant,
		PhysicalAddress: o.Address,
		ShippingAddress: o.Address,
		Comments:        "Created via NetGate order portal",
		Tags:            []string{"netgate", "order-portal"},
	}
}

// GenerateSlug derives a URL-friendly slug from a site name. The name is
// lowercased, every run of characters outside [a-z0-9] collapses to a
// single hyphen, and the result is capped at the upstream limit.
func GenerateSlug(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(name))

	parts := strings.FieldsFunc(mapped, func(r rune) bool { return r == '-' })
	slug := strings.Join(parts, "-")
	if len(slug) > slugMaxLength {
		slug = slug[:slugMaxLength]
	}
	return slug
}
