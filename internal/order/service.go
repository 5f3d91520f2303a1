package order

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/observability"
	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/internal/workflow"
	"github.com/pitabwire/netgate/model"
)

// Service runs orders through the processing pipeline: resolve the
// processor, validate, track the order through its workflow, transform
// and enrich, submit through the tenant access layer, and record the
// outcome. Validation and tenant resolution happen before a workflow is
// created, so a rejected order leaves no record behind.
type Service struct {
	registry   *Registry
	workflows  *workflow.Manager
	access     *tenant.Access
	enrichment EnrichmentData
	logger     *zap.Logger
	obs        *observability.Metrics
}

// NewService wires the pipeline together. The enrichment data is the
// gateway's standing enrichment applied to every order. A nil obs
// disables order metrics.
func NewService(registry *Registry, workflows *workflow.Manager, access *tenant.Access, enrichment EnrichmentData, logger *zap.Logger, obs *observability.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:   registry,
		workflows:  workflows,
		access:     access,
		enrichment: enrichment,
		logger:     logger,
		obs:        obs,
	}
}

// Registry returns the processor registry.
func (s *Service) Registry() *Registry { return s.registry }

// ProcessOrder runs one order through the pipeline. An empty orderType
// selects the registry default. The returned result carries the workflow
// id, its final state and the created resource.
func (s *Service) ProcessOrder(ctx context.Context, appTenant, orderType string, payload Payload) (result *model.OrderResult, err error) {
	logger := observability.LoggerFrom(ctx, s.logger)
	start := time.Now()

	processor, err := s.registry.Resolve(orderType)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "order.process",
		observability.AttrTenantID.String(appTenant),
		observability.AttrOrderType.String(processor.OrderType()))
	defer func() { observability.EndSpanWithError(span, err) }()

	if err := processor.Validate(payload); err != nil {
		logger.Debug("order rejected by validation",
			zap.String("tenant_id", appTenant),
			zap.String("order_type", processor.OrderType()),
			zap.Error(err))
		return nil, err
	}

	inventoryTenant, err := s.access.Mapping().Resolve(ctx, appTenant)
	if err != nil {
		return nil, err
	}

	record := s.workflows.CreateOrder(appTenant, processor.OrderType(), payload.ResourceName())
	span.SetAttributes(observability.AttrOrderID.String(record.OrderID))
	logger.Info("processing order",
		zap.String("order_id", record.OrderID),
		zap.String("tenant_id", appTenant),
		zap.String("order_type", record.OrderType))

	if _, err := s.workflows.Transition(record.OrderID, model.OrderValidated); err != nil {
		return nil, workflowError(err)
	}
	s.recordTransition(model.OrderPending, model.OrderValidated)

	site, err := processor.Transform(payload, &inventoryTenant)
	if err != nil {
		return nil, err
	}
	site = processor.EnrichRequest(site, &s.enrichment)

	if _, err := s.workflows.Transition(record.OrderID, model.OrderProcessing); err != nil {
		return nil, workflowError(err)
	}
	s.recordTransition(model.OrderValidated, model.OrderProcessing)

	created, err := processor.Submit(ctx, s.access, appTenant, site)
	if err != nil {
		logger.Error("order submission failed",
			zap.String("order_id", record.OrderID),
			zap.String("tenant_id", appTenant),
			zap.Error(err))
		if _, markErr := s.workflows.MarkFailed(record.OrderID, err.Error()); markErr != nil {
			logger.Warn("marking order failed did not apply",
				zap.String("order_id", record.OrderID),
				zap.Error(markErr))
		} else {
			s.recordTransition(model.OrderProcessing, model.OrderFailed)
		}
		s.recordOutcome(processor.OrderType(), model.OrderFailed, start)
		span.SetAttributes(observability.AttrOrderState.String(string(model.OrderFailed)))
		return nil, err
	}

	resource := processor.EnrichResource(created, &s.enrichment)

	completed, err := s.workflows.MarkCompleted(record.OrderID, resource.ID)
	if err != nil {
		return nil, workflowError(err)
	}
	s.recordTransition(model.OrderProcessing, model.OrderCompleted)
	s.recordOutcome(processor.OrderType(), model.OrderCompleted, start)
	span.SetAttributes(
		observability.AttrOrderState.String(string(completed.State)),
		observability.AttrInventoryID.Int64(resource.ID))

	logger.Info("order completed",
		zap.String("order_id", completed.OrderID),
		zap.String("tenant_id", appTenant),
		zap.Int64("inventory_id", resource.ID))

	return &model.OrderResult{
		OrderID:     completed.OrderID,
		TenantID:    appTenant,
		InventoryID: completed.InventoryID,
		State:       completed.State,
		SiteName:    resource.Name,
		Site:        &resource,
	}, nil
}

// OrderStatus returns the status of an order for the tenant that owns
// it. An unknown id is NOT_FOUND; another tenant's order is denied.
func (s *Service) OrderStatus(ctx context.Context, appTenant, orderID string) (*model.OrderStatus, error) {
	record, err := s.ownedOrder(appTenant, orderID)
	if err != nil {
		return nil, err
	}
	status := model.StatusOf(record)
	return &status, nil
}

// CancelOrder cancels a tenant's order. Only orders that have not
// started processing can be cancelled.
func (s *Service) CancelOrder(ctx context.Context, appTenant, orderID string) (model.Order, error) {
	record, err := s.ownedOrder(appTenant, orderID)
	if err != nil {
		return model.Order{}, err
	}
	cancelled, err := s.workflows.Cancel(record.OrderID)
	if err != nil {
		return model.Order{}, err
	}
	s.recordTransition(record.State, model.OrderCancelled)
	observability.LoggerFrom(ctx, s.logger).Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("tenant_id", appTenant))
	return cancelled, nil
}

// ListOrders returns the tenant's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, appTenant string) []model.Order {
	return s.workflows.ListByTenant(appTenant)
}

func (s *Service) ownedOrder(appTenant, orderID string) (model.Order, error) {
	record, ok := s.workflows.Get(orderID)
	if !ok {
		return model.Order{}, model.NewNotFoundError(fmt.Sprintf("Order %s not found", orderID))
	}
	if record.TenantID != appTenant {
		return model.Order{}, model.NewUnauthorizedError("missing or invalid tenant ID")
	}
	return record, nil
}

func (s *Service) recordTransition(from, to model.OrderState) {
	if s.obs != nil {
		s.obs.RecordOrderTransition(string(from), string(to))
	}
}

func (s *Service) recordOutcome(orderType string, state model.OrderState, start time.Time) {
	if s.obs != nil {
		s.obs.RecordOrder(orderType, string(state), time.Since(start))
	}
}

func workflowError(err error) error {
	return model.NewInternalError(fmt.Sprintf("workflow error: %s", err))
}
