// Package service implements display order-number allocation and the order
// workflow that drives it, orchestrating between HTTP handlers and the
// repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/google/uuid"
)

// ErrCapacityExhausted is matched by every *CapacityError.
var ErrCapacityExhausted = errors.New("all display numbers are in use")

// ErrInvalidStatus is returned for an unknown order status.
var ErrInvalidStatus = errors.New("invalid order status")

// ErrInvalidTransition is returned when an order cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid order status transition")

// CapacityError reports that a restaurant has every display number live,
// either allocated or cooling down. It is not retried.
type CapacityError struct {
	RestaurantID int64
	Max          int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("restaurant %d: all %d display numbers are in use", e.RestaurantID, e.Max)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExhausted
}

// SlotStore persists display-number slots. Implementations must make
// ClaimLowestAvailable safe under concurrent callers and must reject a
// duplicate (restaurant, number) in InsertAllocated with repository.ErrSlotTaken.
type SlotStore interface {
	ClaimLowestAvailable(ctx context.Context, restaurantID int64, orderID uuid.UUID, now time.Time) (*model.Slot, error)
	MaxDisplayNumber(ctx context.Context, restaurantID int64) (int, error)
	InsertAllocated(ctx context.Context, restaurantID int64, number int, orderID uuid.UUID, now time.Time) (*model.Slot, error)
	ExpireCooldowns(ctx context.Context, restaurantID int64, now time.Time) ([]int, error)
	ListAllocatedBefore(ctx context.Context, restaurantID int64, before time.Time) ([]model.Slot, error)
	ListOccupied(ctx context.Context, restaurantID int64) ([]model.Slot, error)
	Reset(ctx context.Context, slotID int64, orderID uuid.UUID, now time.Time) (bool, error)
	StartCooldown(ctx context.Context, slotID int64, orderID uuid.UUID, until, now time.Time) (bool, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*model.Slot, error)
	FindAllocated(ctx context.Context, restaurantID int64, number int) (*model.Slot, error)
	CountByStatus(ctx context.Context, restaurantID int64) (model.SlotCounts, error)
	ListRestaurantIDs(ctx context.Context) ([]int64, error)
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	SetDisplayNumber(ctx context.Context, id uuid.UUID, number int, orderNumber string, now time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, now time.Time) (bool, error)
	ListByDisplayNumber(ctx context.Context, restaurantID int64, number, limit int) ([]model.Order, error)
	SearchCustomer(ctx context.Context, restaurantID int64, q string, statuses []model.OrderStatus, limit int) ([]model.Order, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
