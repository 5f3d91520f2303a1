package model

import "time"

// OrderTypeSite is the order type handled by the built-in site processor.
const OrderTypeSite = "site"

// OrderState is the lifecycle state of a site order.
type OrderState string

// Order lifecycle states. Serialized capitalized on the wire.
const (
	OrderPending    OrderState = "Pending"
	OrderValidated  OrderState = "Validated"
	OrderProcessing OrderState = "Processing"
	OrderCompleted  OrderState = "Completed"
	OrderFailed     OrderState = "Failed"
	OrderCancelled  OrderState = "Cancelled"
)

// validOrderTransitions encodes the order state machine. Terminal states
// have no outgoing transitions.
var validOrderTransitions = map[OrderState][]OrderState{
	OrderPending:    {OrderValidated, OrderFailed, OrderCancelled},
	OrderValidated:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderCompleted, OrderFailed},
	OrderCompleted:  {},
	OrderFailed:     {},
	OrderCancelled:  {},
}

// CanTransition reports whether a transition from s to next is allowed.
func (s OrderState) CanTransition(next OrderState) bool {
	for _, t := range validOrderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s OrderState) IsTerminal() bool {
	return len(validOrderTransitions[s]) == 0
}

// Order is the in-process workflow record for a submitted order.
type Order struct {
	OrderID      string     `json:"order_id"`
	TenantID     string     `json:"tenant_id"`
	OrderType    string     `json:"order_type"`
	SiteName     string     `json:"site_name,omitempty"`
	State        OrderState `json:"state"`
	InventoryID  *int64     `json:"inventory_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateSiteOrder is the inbound order payload for a new site.
type CreateSiteOrder struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
}

// OrderType identifies site orders to the processor registry.
func (CreateSiteOrder) OrderType() string { return OrderTypeSite }

// ResourceName returns the name of the site the order creates.
func (o CreateSiteOrder) ResourceName() string { return o.Name }

// OrderResult is the response body for a successfully processed order.
// The full site representation stays internal; the wire body carries the
// identifiers the caller needs to track the order.
type OrderResult struct {
	OrderID     string     `json:"order_id"`
	TenantID    string     `json:"tenant_id"`
	InventoryID *int64     `json:"inventory_id,omitempty"`
	State       OrderState `json:"state"`
	SiteName    string     `json:"site_name"`
	Site        *Site      `json:"-"`
}

// OrderStatus is the response body for an order status query.
type OrderStatus struct {
	OrderID     string     `json:"order_id"`
	State       OrderState `json:"state"`
	InventoryID *int64     `json:"inventory_id,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// StatusOf renders an order as its wire status body with RFC3339 timestamps.
func StatusOf(o Order) OrderStatus {
	return OrderStatus{
		OrderID:     o.OrderID,
		State:       o.State,
		InventoryID: o.InventoryID,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
