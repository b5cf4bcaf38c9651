package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/events"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultCooldown     = 4 * time.Hour
	DefaultActiveWindow = 24 * time.Hour

	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Policy controls when display numbers become reusable.
type Policy struct {
	// Cooldown keeps a released number out of circulation so a just-closed
	// order is not confused with a new one showing the same number.
	Cooldown time.Duration
	// ActiveWindow is how long an allocated slot whose order is already
	// terminal survives before allocation reclaims it.
	ActiveWindow time.Duration
}

// DefaultPolicy returns a 4h cooldown and a 24h active window.
func DefaultPolicy() Policy {
	return Policy{Cooldown: DefaultCooldown, ActiveWindow: DefaultActiveWindow}
}

// AllocatorDeps groups the collaborators of OrderNumberService. Emitter,
// Clock and Logger are optional.
type AllocatorDeps struct {
	Slots   SlotStore
	Orders  OrderStore
	Emitter *events.SlotEmitter
	Clock   Clock
	Logger  *slog.Logger
}

// OrderNumberService owns the per-restaurant display-number slot pool. It is
// the only writer of slot state.
type OrderNumberService struct {
	slots   SlotStore
	orders  OrderStore
	emitter *events.SlotEmitter
	clock   Clock
	policy  Policy
	logger  *slog.Logger
}

// NewOrderNumberService constructs an OrderNumberService.
func NewOrderNumberService(deps AllocatorDeps, policy Policy) *OrderNumberService {
	if policy.Cooldown < 0 {
		policy.Cooldown = 0
	}
	if policy.ActiveWindow <= 0 {
		policy.ActiveWindow = DefaultActiveWindow
	}

	s := &OrderNumberService{
		slots:   deps.Slots,
		orders:  deps.Orders,
		emitter: deps.Emitter,
		clock:   deps.Clock,
		policy:  policy,
		logger:  deps.Logger,
	}
	if s.emitter == nil {
		s.emitter = events.NewSlotEmitter(nil, "")
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	return s
}

// Policy returns the recycling policy in effect.
func (s *OrderNumberService) Policy() Policy {
	return s.policy
}

// GenerateInternalOrderID returns a fresh globally-unique order identifier.
func (s *OrderNumberService) GenerateInternalOrderID() uuid.UUID {
	return uuid.New()
}

// AllocateDisplayNumber gives orderID a display number in [1, 9999] that no
// other live order of the restaurant holds.
//
// The lowest available slot is claimed first. When none is free a new slot is
// created at max+1; if another caller creates that number first the whole
// attempt starts over. Every lost race means one more slot exists, so the
// loop ends after at most MaxDisplayNumber rounds. An order that already
// holds an allocated number gets that number back.
func (s *OrderNumberService) AllocateDisplayNumber(ctx context.Context, restaurantID int64, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, fmt.Errorf("order id is required")
	}

	held, err := s.slots.FindByOrder(ctx, orderID)
	switch {
	case err == nil && held.Status == model.SlotAllocated:
		return held.DisplayNumber, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return 0, fmt.Errorf("claim display number: %w", err)
	}

	for attempt := 1; attempt <= model.MaxDisplayNumber; attempt++ {
		if _, err := s.ReclaimSlots(ctx, restaurantID); err != nil {
			return 0, err
		}

		now := s.clock.Now()
		slot, err := s.slots.ClaimLowestAvailable(ctx, restaurantID, orderID, now)
		if err == nil {
			s.allocated(ctx, slot, "reused", now)
			return slot.DisplayNumber, nil
		}
		if !errors.Is(err, repository.ErrNoAvailableSlot) {
			return 0, fmt.Errorf("claim display number: %w", err)
		}

		highest, err := s.slots.MaxDisplayNumber(ctx, restaurantID)
		if err != nil {
			return 0, fmt.Errorf("claim display number: %w", err)
		}
		next := highest + 1
		if next > model.MaxDisplayNumber {
			s.logger.Warn("display numbers exhausted", "restaurant_id", restaurantID)
			return 0, &CapacityError{RestaurantID: restaurantID, Max: model.MaxDisplayNumber}
		}

		slot, err = s.slots.InsertAllocated(ctx, restaurantID, next, orderID, now)
		if errors.Is(err, repository.ErrSlotTaken) {
			s.logger.Debug("display number created concurrently, retrying",
				"restaurant_id", restaurantID, "display_number", next, "attempt", attempt)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("create display number: %w", err)
		}
		s.allocated(ctx, slot, "created", now)
		return slot.DisplayNumber, nil
	}

	return 0, fmt.Errorf("allocate display number for restaurant %d: too many concurrent attempts", restaurantID)
}

func (s *OrderNumberService) allocated(ctx context.Context, slot *model.Slot, reason string, now time.Time) {
	s.logger.Info("display number allocated",
		"restaurant_id", slot.RestaurantID,
		"display_number", slot.DisplayNumber,
		"order_id", slot.CurrentOrderID,
		"source", reason)
	s.emit(ctx, events.SlotEvent{
		EventType:     events.EventSlotAllocated,
		RestaurantID:  slot.RestaurantID,
		DisplayNumber: slot.DisplayNumber,
		OrderID:       slot.CurrentOrderID,
		Status:        string(model.SlotAllocated),
		Reason:        reason,
		OccurredAt:    now,
	})
}

// ReclaimSlots returns expired cooldown slots to the pool, along with
// allocated slots older than the active window whose order has already
// finished. It only ever moves slots toward available, so it is safe to run
// concurrently and repeatedly.
func (s *OrderNumberService) ReclaimSlots(ctx context.Context, restaurantID int64) (int, error) {
	now := s.clock.Now()

	freed, err := s.slots.ExpireCooldowns(ctx, restaurantID, now)
	if err != nil {
		return 0, fmt.Errorf("reclaim cooldown slots: %w", err)
	}
	for _, n := range freed {
		s.emit(ctx, events.SlotEvent{
			EventType:     events.EventSlotReclaimed,
			RestaurantID:  restaurantID,
			DisplayNumber: n,
			Status:        string(model.SlotAvailable),
			Reason:        "cooldown_expired",
			OccurredAt:    now,
		})
	}
	reclaimed := len(freed)

	stale, err := s.slots.ListAllocatedBefore(ctx, restaurantID, now.Add(-s.policy.ActiveWindow))
	if err != nil {
		return reclaimed, fmt.Errorf("reclaim stale slots: %w", err)
	}
	for _, slot := range stale {
		if slot.CurrentOrderID == nil {
			continue
		}
		order, err := s.orders.GetByID(ctx, *slot.CurrentOrderID)
		if errors.Is(err, repository.ErrNotFound) {
			// Orphans are CleanupOrphanedSlots' job.
			continue
		}
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim stale slots: %w", err)
		}
		if !order.Status.Terminal() {
			continue
		}

		ok, err := s.slots.Reset(ctx, slot.ID, order.ID, now)
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim stale slots: %w", err)
		}
		if !ok {
			continue
		}
		reclaimed++
		s.logger.Warn("reclaimed stale display number",
			"restaurant_id", restaurantID,
			"display_number", slot.DisplayNumber,
			"order_id", order.ID,
			"order_status", order.Status)
		s.emit(ctx, events.SlotEvent{
			EventType:     events.EventSlotReclaimed,
			RestaurantID:  restaurantID,
			DisplayNumber: slot.DisplayNumber,
			OrderID:       &order.ID,
			Status:        string(model.SlotAvailable),
			Reason:        "stale_allocation",
			OccurredAt:    now,
		})
	}
	return reclaimed, nil
}

// ReleaseDisplayNumber gives back the number held by orderID. Without
// immediate the slot cools down for the policy's cooldown first. Releasing an
// order that holds no number, or one already cooling down, is a no-op.
func (s *OrderNumberService) ReleaseDisplayNumber(ctx context.Context, orderID uuid.UUID, immediate bool) error {
	slot, err := s.slots.FindByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release display number: %w", err)
	}

	now := s.clock.Now()
	var (
		changed bool
		status  = model.SlotCooldown
	)
	switch {
	case immediate:
		status = model.SlotAvailable
		changed, err = s.slots.Reset(ctx, slot.ID, orderID, now)
	case slot.Status == model.SlotCooldown:
		return nil
	default:
		changed, err = s.slots.StartCooldown(ctx, slot.ID, orderID, now.Add(s.policy.Cooldown), now)
	}
	if err != nil {
		return fmt.Errorf("release display number: %w", err)
	}
	if !changed {
		return nil
	}

	s.logger.Info("display number released",
		"restaurant_id", slot.RestaurantID,
		"display_number", slot.DisplayNumber,
		"order_id", orderID,
		"immediate", immediate)
	s.emit(ctx, events.SlotEvent{
		EventType:     events.EventSlotReleased,
		RestaurantID:  slot.RestaurantID,
		DisplayNumber: slot.DisplayNumber,
		OrderID:       &orderID,
		Status:        string(status),
		OccurredAt:    now,
	})
	return nil
}

// LookupByDisplayNumber returns the order currently holding a number, or nil.
// Orders that held the number before are not considered.
func (s *OrderNumberService) LookupByDisplayNumber(ctx context.Context, restaurantID int64, number int) (*model.Order, error) {
	if number < model.MinDisplayNumber || number > model.MaxDisplayNumber {
		return nil, nil
	}
	slot, err := s.slots.FindAllocated(ctx, restaurantID, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup display number: %w", err)
	}
	if slot.CurrentOrderID == nil {
		return nil, nil
	}
	return s.LookupByInternalID(ctx, *slot.CurrentOrderID)
}

// LookupByInternalID returns the order with the given internal id, or nil.
func (s *OrderNumberService) LookupByInternalID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	return order, nil
}

// looksLikeUUID is a cheap pre-check; uuid.Parse decides.
func looksLikeUUID(q string) bool {
	return len(q) >= 8 && strings.Contains(q, "-")
}

// SearchOrders resolves a free-text query against, in order: display
// numbers (current holder, then past holders, newest first), internal ids,
// and customer name or phone. Duplicates keep their first position. Customer
// matches are limited to active orders unless includeCompleted is set.
// Queries that match nothing yield an empty slice, never an error.
func (s *OrderNumberService) SearchOrders(ctx context.Context, restaurantID int64, query string, includeCompleted bool, limit int) ([]model.Order, error) {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	results := make([]model.Order, 0, limit)
	if query == "" {
		return results, nil
	}

	seen := make(map[uuid.UUID]struct{})
	add := func(o model.Order) {
		if len(results) >= limit {
			return
		}
		if _, dup := seen[o.ID]; dup {
			return
		}
		seen[o.ID] = struct{}{}
		results = append(results, o)
	}

	if n, ok := ParseDisplayNumber(query); ok {
		current, err := s.LookupByDisplayNumber(ctx, restaurantID, n)
		if err != nil {
			return nil, err
		}
		if current != nil {
			add(*current)
		}
		past, err := s.orders.ListByDisplayNumber(ctx, restaurantID, n, limit+1)
		if err != nil {
			return nil, fmt.Errorf("search by display number: %w", err)
		}
		for _, o := range past {
			add(o)
		}
	}

	if len(results) < limit && looksLikeUUID(query) {
		if id, err := uuid.Parse(query); err == nil {
			o, err := s.LookupByInternalID(ctx, id)
			if err != nil {
				return nil, err
			}
			if o != nil && o.RestaurantID == restaurantID {
				add(*o)
			}
		}
	}

	if len(results) < limit {
		statuses := model.ActiveOrderStatuses
		if includeCompleted {
			statuses = nil
		}
		matches, err := s.orders.SearchCustomer(ctx, restaurantID, query, statuses, limit)
		if err != nil {
			return nil, fmt.Errorf("search by customer: %w", err)
		}
		for _, o := range matches {
			add(o)
		}
	}

	return results, nil
}

// GetSlotStats reports the size and occupancy of a restaurant's slot pool.
func (s *OrderNumberService) GetSlotStats(ctx context.Context, restaurantID int64) (model.SlotStats, error) {
	c, err := s.slots.CountByStatus(ctx, restaurantID)
	if err != nil {
		return model.SlotStats{}, fmt.Errorf("slot stats: %w", err)
	}
	utilization := float64(c.Allocated) / float64(model.MaxDisplayNumber) * 100
	return model.SlotStats{
		RestaurantID:       restaurantID,
		Total:              c.Total,
		Available:          c.Available,
		Allocated:          c.Allocated,
		Cooldown:           c.Cooldown,
		MaxPossible:        model.MaxDisplayNumber,
		UtilizationPercent: math.Round(utilization*100) / 100,
	}, nil
}

// CleanupOrphanedSlots frees every allocated or cooldown slot whose order no
// longer exists and returns how many were freed.
func (s *OrderNumberService) CleanupOrphanedSlots(ctx context.Context, restaurantID int64) (int, error) {
	occupied, err := s.slots.ListOccupied(ctx, restaurantID)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphaned slots: %w", err)
	}

	var reset int
	for _, slot := range occupied {
		if slot.CurrentOrderID == nil {
			continue
		}
		orderID := *slot.CurrentOrderID
		_, err := s.orders.GetByID(ctx, orderID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return reset, fmt.Errorf("cleanup orphaned slots: %w", err)
		}

		now := s.clock.Now()
		ok, err := s.slots.Reset(ctx, slot.ID, orderID, now)
		if err != nil {
			return reset, fmt.Errorf("cleanup orphaned slots: %w", err)
		}
		if !ok {
			continue
		}
		reset++
		s.logger.Warn("reset orphaned display number",
			"restaurant_id", restaurantID,
			"display_number", slot.DisplayNumber,
			"order_id", orderID,
			"previous_status", slot.Status)
		s.emit(ctx, events.SlotEvent{
			EventType:     events.EventSlotReclaimed,
			RestaurantID:  restaurantID,
			DisplayNumber: slot.DisplayNumber,
			OrderID:       &orderID,
			Status:        string(model.SlotAvailable),
			Reason:        "orphaned",
			OccurredAt:    now,
		})
	}
	return reset, nil
}

// ListRestaurantIDs returns the restaurants that own display-number slots.
func (s *OrderNumberService) ListRestaurantIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.slots.ListRestaurantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return ids, nil
}

// emit never fails the caller; displays catch up on the next event.
func (s *OrderNumberService) emit(ctx context.Context, ev events.SlotEvent) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.logger.Error("publish slot event failed",
			"event_type", ev.EventType,
			"restaurant_id", ev.RestaurantID,
			"display_number", ev.DisplayNumber,
			"error", err)
	}
}
