// Package model defines the core domain types for display order-number allocation.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Display numbers live in [MinDisplayNumber, MaxDisplayNumber] per restaurant.
const (
	MinDisplayNumber = 1
	MaxDisplayNumber = 9999
)

// SlotStatus is the lifecycle state of a display-number slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotAllocated SlotStatus = "allocated"
	SlotCooldown  SlotStatus = "cooldown"
)

// Slot tracks one (restaurant, display number) pair through its lifecycle.
// CurrentOrderID is set only while the slot is allocated or cooling down.
type Slot struct {
	ID                int64      `json:"id"`
	RestaurantID      int64      `json:"restaurant_id"`
	DisplayNumber     int        `json:"display_number"`
	Status            SlotStatus `json:"status"`
	CurrentOrderID    *uuid.UUID `json:"current_order_id,omitempty"`
	AllocatedAt       *time.Time `json:"allocated_at,omitempty"`
	CooldownExpiresAt *time.Time `json:"cooldown_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsOccupied reports whether the slot still references an order.
func (s *Slot) IsOccupied() bool {
	return s.Status == SlotAllocated || s.Status == SlotCooldown
}

// CooldownExpired reports whether a cooling-down slot may be reused at now.
func (s *Slot) CooldownExpired(now time.Time) bool {
	return s.Status == SlotCooldown && s.CooldownExpiresAt != nil && !s.CooldownExpiresAt.After(now)
}

// OrderStatus is the status of a restaurant order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// ActiveOrderStatuses lists every non-terminal status.
var ActiveOrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderServed,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderServed,
		OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether the order is finished and its number can be released.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Order is a restaurant order carrying both identifiers: the immutable
// internal ID and the recyclable display number.
type Order struct {
	ID                 uuid.UUID   `json:"id"`
	RestaurantID       int64       `json:"restaurant_id"`
	DisplayOrderNumber *int        `json:"display_order_number,omitempty"`
	OrderNumber        string      `json:"order_number,omitempty"`
	CustomerName       string      `json:"customer_name"`
	CustomerPhone      string      `json:"customer_phone"`
	Status             OrderStatus `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// SlotCounts is the raw per-status slot tally for a restaurant.
type SlotCounts struct {
	Total     int
	Available int
	Allocated int
	Cooldown  int
}

// SlotStats is the monitoring view of a restaurant's slot pool.
type SlotStats struct {
	RestaurantID       int64   `json:"restaurant_id"`
	Total              int     `json:"total"`
	Available          int     `json:"available"`
	Allocated          int     `json:"allocated"`
	Cooldown           int     `json:"cooldown"`
	MaxPossible        int     `json:"max_possible"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// CreateOrderRequest is the payload for creating a new order.
type CreateOrderRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// UpdateStatusRequest is the payload for changing an order's status.
type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// OrderResponse wraps an order with its formatted display number.
type OrderResponse struct {
	Order
	DisplayNumber string `json:"display_number"`
}

// CleanupResponse reports the outcome of an orphan sweep.
type CleanupResponse struct {
	RestaurantID int64 `json:"restaurant_id"`
	Reset        int   `json:"reset"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}
