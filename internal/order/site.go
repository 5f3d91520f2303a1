package order

import (
	"context"
	"fmt"

	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/model"
)

// SiteProcessor handles site orders end to end.
type SiteProcessor struct {
	validator   *Validator
	transformer *Transformer
	enricher    *Enricher
}

var _ Processor = (*SiteProcessor)(nil)

// NewSiteProcessor returns a SiteProcessor with the standard rules.
func NewSiteProcessor() *SiteProcessor {
	return &SiteProcessor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
		enricher:    NewEnricher(),
	}
}

// NewSiteProcessorWith returns a SiteProcessor built from custom parts.
func NewSiteProcessorWith(v *Validator, t *Transformer, e *Enricher) *SiteProcessor {
	return &SiteProcessor{validator: v, transformer: t, enricher: e}
}

// OrderType implements Processor.
func (p *SiteProcessor) OrderType() string { return model.OrderTypeSite }

// Validate implements Processor.
func (p *SiteProcessor) Validate(payload Payload) error {
	order, err := p.siteOrder(payload)
	if err != nil {
		return err
	}
	return p.validator.ValidateSiteOrder(order)
}

// Transform implements Processor.
func (p *SiteProcessor) Transform(payload Payload, inventoryTenant *int64) (model.Site, error) {
	order, err := p.siteOrder(payload)
	if err != nil {
		return model.Site{}, err
	}
	return p.transformer.TransformSiteOrder(order, inventoryTenant), nil
}

// EnrichRequest implements Processor.
func (p *SiteProcessor) EnrichRequest(site model.Site, data *EnrichmentData) model.Site {
	return p.enricher.EnrichSite(site, data)
}

// Submit implements Processor.
func (p *SiteProcessor) Submit(ctx context.Context, access *tenant.Access, appTenant string, site model.Site) (model.Site, error) {
	created, err := access.CreateSite(ctx, appTenant, &site)
	if err != nil {
		return model.Site{}, err
	}
	return *created, nil
}

// EnrichResource implements Processor.
func (p *SiteProcessor) EnrichResource(site model.Site, data *EnrichmentData) model.Site {
	return p.enricher.EnrichSite(site, data)
}

func (p *SiteProcessor) siteOrder(payload Payload) (model.CreateSiteOrder, error) {
	order, ok := payload.(model.CreateSiteOrder)
	if !ok {
		return model.CreateSiteOrder{}, model.NewValidationError(fmt.Sprintf("Order type %q is not a site order", payload.OrderType()))
	}
	return order, nil
}
