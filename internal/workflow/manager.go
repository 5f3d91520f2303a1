// Package workflow tracks the lifecycle of submitted orders through an
// in-process state machine.
package workflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pitabwire/netgate/model"
)

// Manager holds order workflows keyed by order ID. All methods are safe
// for concurrent use; each mutation happens under the write lock, so the
// sequence of states any reader observes for one order is always a prefix
// of Pending, Validated, Processing, then Completed or Failed.
type Manager struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
}

// NewManager creates an empty workflow manager.
func NewManager() *Manager {
	return &Manager{orders: make(map[string]*model.Order)}
}

// CreateOrder registers a new workflow in Pending state and returns it.
func (m *Manager) CreateOrder(tenantID, orderType, siteName string) model.Order {
	now := time.Now().UTC()
	order := &model.Order{
		OrderID:   uuid.New().String(),
		TenantID:  tenantID,
		OrderType: orderType,
		SiteName:  siteName,
		State:     model.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderID] = order
	return *order
}

// Get returns a copy of the workflow for orderID.
func (m *Manager) Get(orderID string) (model.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	return *order, true
}

// Transition moves the order to the given state. A disallowed transition
// returns INVALID_TRANSITION and leaves the order untouched; UpdatedAt is
// bumped only on accepted transitions.
func (m *Manager) Transition(orderID string, to model.OrderState) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(orderID, to)
}

// MarkCompleted transitions to Completed and stamps the inventory ID.
func (m *Manager) MarkCompleted(orderID string, inventoryID int64) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.transitionLocked(orderID, model.OrderCompleted); err != nil {
		return model.Order{}, err
	}
	m.orders[orderID].InventoryID = &inventoryID
	return *m.orders[orderID], nil
}

// MarkFailed transitions to Failed and stamps the error message.
func (m *Manager) MarkFailed(orderID, msg string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.transitionLocked(orderID, model.OrderFailed); err != nil {
		return model.Order{}, err
	}
	m.orders[orderID].ErrorMessage = msg
	return *m.orders[orderID], nil
}

// Cancel transitions to Cancelled. Only Pending and Validated orders can
// be cancelled.
func (m *Manager) Cancel(orderID string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(orderID, model.OrderCancelled)
}

// ListByTenant returns the tenant's workflows newest-first.
func (m *Manager) ListByTenant(tenantID string) []model.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []model.Order
	for _, order := range m.orders {
		if order.TenantID == tenantID {
			orders = append(orders, *order)
		}
	}
	sortNewestFirst(orders)
	return orders
}

// ListByState returns all workflows in the given state, newest-first.
func (m *Manager) ListByState(state model.OrderState) []model.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []model.Order
	for _, order := range m.orders {
		if order.State == state {
			orders = append(orders, *order)
		}
	}
	sortNewestFirst(orders)
	return orders
}

// Len returns the number of tracked workflows.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *Manager) transitionLocked(orderID string, to model.OrderState) (model.Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, model.NewNotFoundError(fmt.Sprintf("order %q not found", orderID))
	}
	if !order.State.CanTransition(to) {
		return model.Order{}, model.NewInvalidTransitionError(
			fmt.Sprintf("cannot transition from %s to %s", order.State, to),
		)
	}
	order.State = to
	order.UpdatedAt = time.Now().UTC()
	return *order, nil
}

func sortNewestFirst(orders []model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderID < orders[j].OrderID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
