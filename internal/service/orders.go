package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/repository"
	"github.com/google/uuid"
)

const maxCustomerField = 200

// statusRank orders the forward progression of an order. Cancellation is
// allowed from any non-terminal status.
var statusRank = map[model.OrderStatus]int{
	model.OrderPending:   0,
	model.OrderConfirmed: 1,
	model.OrderPreparing: 2,
	model.OrderReady:     3,
	model.OrderServed:    4,
	model.OrderCompleted: 5,
}

func canTransition(from, to model.OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == model.OrderCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// OrderService creates orders and moves them through their statuses, taking
// and giving back display numbers along the way.
type OrderService struct {
	orders  OrderStore
	numbers *OrderNumberService
	clock   Clock
	logger  *slog.Logger
}

// NewOrderService constructs an OrderService with its dependencies.
func NewOrderService(orders OrderStore, numbers *OrderNumberService, clock Clock, logger *slog.Logger) *OrderService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &OrderService{orders: orders, numbers: numbers, clock: clock, logger: logger}
}

// CreateOrder stores a new pending order with a fresh internal id and gives
// it a display number. When the restaurant has no number left, or the number
// cannot be recorded on the order, the order is cancelled, any number it got
// is freed and the error is returned.
func (s *OrderService) CreateOrder(ctx context.Context, restaurantID int64, req model.CreateOrderRequest) (*model.Order, error) {
	if restaurantID <= 0 {
		return nil, fmt.Errorf("restaurant id must be a positive integer")
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	if len(req.CustomerName) > maxCustomerField || len(req.CustomerPhone) > maxCustomerField {
		return nil, fmt.Errorf("customer fields cannot exceed %d characters", maxCustomerField)
	}

	now := s.clock.Now()
	order := &model.Order{
		ID:            s.numbers.GenerateInternalOrderID(),
		RestaurantID:  restaurantID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Status:        model.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	number, err := s.numbers.AllocateDisplayNumber(ctx, restaurantID, order.ID)
	if err != nil {
		s.cancelUnnumbered(ctx, order.ID)
		if errors.Is(err, ErrCapacityExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	order.DisplayOrderNumber = &number
	order.OrderNumber = FormatOrderNumber(restaurantID, number)
	order.UpdatedAt = s.clock.Now()
	if err := s.orders.SetDisplayNumber(ctx, order.ID, number, order.OrderNumber, order.UpdatedAt); err != nil {
		if rerr := s.numbers.ReleaseDisplayNumber(ctx, order.ID, true); rerr != nil {
			s.logger.Error("release unrecorded display number failed", "order_id", order.ID, "error", rerr)
		}
		s.cancelUnnumbered(ctx, order.ID)
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"restaurant_id", restaurantID,
		"display_number", FormatDisplayNumber(order.DisplayOrderNumber))
	return order, nil
}

// cancelUnnumbered cancels a freshly created order that ended up without a
// display number.
func (s *OrderService) cancelUnnumbered(ctx context.Context, id uuid.UUID) {
	if _, err := s.orders.UpdateStatus(ctx, id, model.OrderPending, model.OrderCancelled, s.clock.Now()); err != nil {
		s.logger.Error("cancel order without display number failed", "order_id", id, "error", err)
	}
}

// GetOrder returns a single order by internal id.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// UpdateStatus moves an order to a new status. Entering completed or
// cancelled releases its display number into cooldown. Setting the current
// status again is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, to model.OrderStatus) (*model.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	if !canTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, to)
	}

	now := s.clock.Now()
	ok, err := s.orders.UpdateStatus(ctx, id, order.Status, to, now)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
	order.Status = to
	order.UpdatedAt = now

	if to.Terminal() {
		// A failure here leaves the slot allocated; allocation reclaims it
		// once the active window passes.
		if err := s.numbers.ReleaseDisplayNumber(ctx, id, false); err != nil {
			s.logger.Error("release display number failed", "order_id", id, "error", err)
			return order, fmt.Errorf("release display number: %w", err)
		}
	}
	return order, nil
}
