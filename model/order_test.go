package model

import (
	"testing"
	"time"
)

func TestOrderState_CanTransition(t *testing.T) {
	tests := []struct {
		from OrderState
		to   OrderState
		want bool
	}{
		{OrderPending, OrderValidated, true},
		{OrderPending, OrderFailed, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderProcessing, false},
		{OrderPending, OrderCompleted, false},
		{OrderValidated, OrderProcessing, true},
		{OrderValidated, OrderCancelled, true},
		{OrderValidated, OrderCompleted, false},
		{OrderProcessing, OrderCompleted, true},
		{OrderProcessing, OrderFailed, true},
		{OrderProcessing, OrderCancelled, false},
		{OrderCompleted, OrderFailed, false},
		{OrderCompleted, OrderCancelled, false},
		{OrderFailed, OrderPending, false},
		{OrderCancelled, OrderValidated, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderState_IsTerminal(t *testing.T) {
	terminal := []OrderState{OrderCompleted, OrderFailed, OrderCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}

	live := []OrderState{OrderPending, OrderValidated, OrderProcessing}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestStatusOf(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	updated := created.Add(2 * time.Minute)

	o := Order{
		OrderID:     "ord-1",
		TenantID:    "t1",
		State:       OrderCompleted,
		InventoryID: Int64(123),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}

	status := StatusOf(o)
	if status.OrderID != "ord-1" {
		t.Errorf("OrderID = %q, want ord-1", status.OrderID)
	}
	if status.State != OrderCompleted {
		t.Errorf("State = %s, want Completed", status.State)
	}
	if status.InventoryID == nil || *status.InventoryID != 123 {
		t.Errorf("InventoryID = %v, want 123", status.InventoryID)
	}
	if status.CreatedAt != "2025-03-14T09:26:53Z" {
		t.Errorf("CreatedAt = %q, want RFC3339 UTC", status.CreatedAt)
	}
	if status.UpdatedAt != "2025-03-14T09:28:53Z" {
		t.Errorf("UpdatedAt = %q, want RFC3339 UTC", status.UpdatedAt)
	}
}

func TestStatusOf_noInventoryID(t *testing.T) {
	status := StatusOf(Order{OrderID: "ord-2", State: OrderPending})
	if status.InventoryID != nil {
		t.Errorf("InventoryID = %v, want nil", status.InventoryID)
	}
}
