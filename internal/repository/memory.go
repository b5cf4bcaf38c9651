package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/google/uuid"
)

// MemorySlotRepository keeps slots in process memory. Every method holds the
// mutex for its whole body, which gives each call the isolation a row lock
// gives a Postgres transaction. It is only correct within a single process.
// Seed and Snapshot are test fixtures outside the SlotStore contract.
type MemorySlotRepository struct {
	mu       sync.Mutex
	nextID   int64
	slots    map[int64]*model.Slot
	byNumber map[slotKey]int64
}

type slotKey struct {
	restaurantID int64
	number       int
}

// NewMemorySlotRepository constructs an empty MemorySlotRepository.
func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{
		slots:    make(map[int64]*model.Slot),
		byNumber: make(map[slotKey]int64),
	}
}

func copySlot(s *model.Slot) model.Slot {
	out := *s
	if s.CurrentOrderID != nil {
		id := *s.CurrentOrderID
		out.CurrentOrderID = &id
	}
	if s.AllocatedAt != nil {
		t := *s.AllocatedAt
		out.AllocatedAt = &t
	}
	if s.CooldownExpiresAt != nil {
		t := *s.CooldownExpiresAt
		out.CooldownExpiresAt = &t
	}
	return out
}

func makeAvailable(s *model.Slot, now time.Time) {
	s.Status = model.SlotAvailable
	s.CurrentOrderID = nil
	s.AllocatedAt = nil
	s.CooldownExpiresAt = nil
	s.UpdatedAt = now
}

// sorted returns the slots of a restaurant matching keep, ordered by number.
// Callers must hold mu.
func (r *MemorySlotRepository) sorted(restaurantID int64, keep func(*model.Slot) bool) []*model.Slot {
	var out []*model.Slot
	for _, s := range r.slots {
		if s.RestaurantID == restaurantID && keep(s) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *model.Slot) int { return cmp.Compare(a.DisplayNumber, b.DisplayNumber) })
	return out
}

// Seed stores a slot as-is, replacing any slot with the same number. It is a
// test fixture for states the allocator never produces on its own, such as a
// full pool or a slot allocated days ago; service code never calls it.
func (r *MemorySlotRepository) Seed(s model.Slot) model.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey{s.RestaurantID, s.DisplayNumber}
	if id, ok := r.byNumber[key]; ok {
		s.ID = id
	} else {
		r.nextID++
		s.ID = r.nextID
		r.byNumber[key] = s.ID
	}
	stored := copySlot(&s)
	r.slots[s.ID] = &stored
	return copySlot(&stored)
}

// Snapshot returns copies of all slots of a restaurant ordered by number. Tests
// use it to inspect slot state directly.
func (r *MemorySlotRepository) Snapshot(restaurantID int64) []model.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Slot
	for _, s := range r.sorted(restaurantID, func(*model.Slot) bool { return true }) {
		out = append(out, copySlot(s))
	}
	return out
}

func (r *MemorySlotRepository) ClaimLowestAvailable(_ context.Context, restaurantID int64, orderID uuid.UUID, now time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.sorted(restaurantID, func(s *model.Slot) bool { return s.Status == model.SlotAvailable })
	if len(candidates) == 0 {
		return nil, ErrNoAvailableSlot
	}
	s := candidates[0]
	id, at := orderID, now
	s.Status = model.SlotAllocated
	s.CurrentOrderID = &id
	s.AllocatedAt = &at
	s.CooldownExpiresAt = nil
	s.UpdatedAt = now

	out := copySlot(s)
	return &out, nil
}

func (r *MemorySlotRepository) MaxDisplayNumber(_ context.Context, restaurantID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	highest := 0
	for key := range r.byNumber {
		if key.restaurantID == restaurantID && key.number > highest {
			highest = key.number
		}
	}
	return highest, nil
}

func (r *MemorySlotRepository) InsertAllocated(_ context.Context, restaurantID int64, number int, orderID uuid.UUID, now time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey{restaurantID, number}
	if _, ok := r.byNumber[key]; ok {
		return nil, ErrSlotTaken
	}

	r.nextID++
	id, at := orderID, now
	s := &model.Slot{
		ID:             r.nextID,
		RestaurantID:   restaurantID,
		DisplayNumber:  number,
		Status:         model.SlotAllocated,
		CurrentOrderID: &id,
		AllocatedAt:    &at,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.slots[s.ID] = s
	r.byNumber[key] = s.ID

	out := copySlot(s)
	return &out, nil
}

func (r *MemorySlotRepository) ExpireCooldowns(_ context.Context, restaurantID int64, now time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var numbers []int
	for _, s := range r.sorted(restaurantID, func(s *model.Slot) bool { return s.CooldownExpired(now) }) {
		makeAvailable(s, now)
		numbers = append(numbers, s.DisplayNumber)
	}
	return numbers, nil
}

func (r *MemorySlotRepository) ListAllocatedBefore(_ context.Context, restaurantID int64, before time.Time) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Slot
	for _, s := range r.sorted(restaurantID, func(s *model.Slot) bool {
		return s.Status == model.SlotAllocated && s.AllocatedAt != nil && s.AllocatedAt.Before(before)
	}) {
		out = append(out, copySlot(s))
	}
	return out, nil
}

func (r *MemorySlotRepository) ListOccupied(_ context.Context, restaurantID int64) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Slot
	for _, s := range r.sorted(restaurantID, (*model.Slot).IsOccupied) {
		out = append(out, copySlot(s))
	}
	return out, nil
}

func (r *MemorySlotRepository) Reset(_ context.Context, slotID int64, orderID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || !s.IsOccupied() || s.CurrentOrderID == nil || *s.CurrentOrderID != orderID {
		return false, nil
	}
	makeAvailable(s, now)
	return true, nil
}

func (r *MemorySlotRepository) StartCooldown(_ context.Context, slotID int64, orderID uuid.UUID, until, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.Status != model.SlotAllocated || s.CurrentOrderID == nil || *s.CurrentOrderID != orderID {
		return false, nil
	}
	s.Status = model.SlotCooldown
	s.CooldownExpiresAt = &until
	s.UpdatedAt = now
	return true, nil
}

func (r *MemorySlotRepository) FindByOrder(_ context.Context, orderID uuid.UUID) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *model.Slot
	for _, s := range r.slots {
		if !s.IsOccupied() || s.CurrentOrderID == nil || *s.CurrentOrderID != orderID {
			continue
		}
		if found == nil || s.Status == model.SlotAllocated {
			found = s
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	out := copySlot(found)
	return &out, nil
}

func (r *MemorySlotRepository) FindAllocated(_ context.Context, restaurantID int64, number int) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byNumber[slotKey{restaurantID, number}]
	if !ok || r.slots[id].Status != model.SlotAllocated {
		return nil, ErrNotFound
	}
	out := copySlot(r.slots[id])
	return &out, nil
}

func (r *MemorySlotRepository) CountByStatus(_ context.Context, restaurantID int64) (model.SlotCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c model.SlotCounts
	for _, s := range r.slots {
		if s.RestaurantID != restaurantID {
			continue
		}
		c.Total++
		switch s.Status {
		case model.SlotAvailable:
			c.Available++
		case model.SlotAllocated:
			c.Allocated++
		case model.SlotCooldown:
			c.Cooldown++
		}
	}
	return c, nil
}

func (r *MemorySlotRepository) ListRestaurantIDs(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int64]struct{})
	var ids []int64
	for key := range r.byNumber {
		if _, ok := seen[key.restaurantID]; !ok {
			seen[key.restaurantID] = struct{}{}
			ids = append(ids, key.restaurantID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// MemoryOrderRepository keeps orders in process memory. Delete is a test
// fixture outside the OrderStore contract.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*model.Order
}

// NewMemoryOrderRepository constructs an empty MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[uuid.UUID]*model.Order)}
}

func copyOrder(o *model.Order) model.Order {
	out := *o
	if o.DisplayOrderNumber != nil {
		n := *o.DisplayOrderNumber
		out.DisplayOrderNumber = &n
	}
	return out
}

func (r *MemoryOrderRepository) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyOrder(o)
	r.orders[o.ID] = &stored
	return nil
}

// Delete removes an order outright, leaving any slot that references it
// orphaned. It is a test fixture for orphan cleanup; orders are never deleted
// by the service.
func (r *MemoryOrderRepository) Delete(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
}

func (r *MemoryOrderRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (r *MemoryOrderRepository) SetDisplayNumber(_ context.Context, id uuid.UUID, number int, orderNumber string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.DisplayOrderNumber = &number
	o.OrderNumber = orderNumber
	o.UpdatedAt = now
	return nil
}

func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = now
	return true, nil
}

// newestFirst collects matching orders of a restaurant, most recent first.
// Callers must hold mu.
func (r *MemoryOrderRepository) newestFirst(restaurantID int64, keep func(*model.Order) bool, limit int) []model.Order {
	var out []model.Order
	for _, o := range r.orders {
		if o.RestaurantID == restaurantID && keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b model.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MemoryOrderRepository) ListByDisplayNumber(_ context.Context, restaurantID int64, number, limit int) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.newestFirst(restaurantID, func(o *model.Order) bool {
		return o.DisplayOrderNumber != nil && *o.DisplayOrderNumber == number
	}, limit), nil
}

func (r *MemoryOrderRepository) SearchCustomer(_ context.Context, restaurantID int64, q string, statuses []model.OrderStatus, limit int) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(q)
	return r.newestFirst(restaurantID, func(o *model.Order) bool {
		if statuses != nil && !slices.Contains(statuses, o.Status) {
			return false
		}
		return strings.Contains(strings.ToLower(o.CustomerName), needle) ||
			strings.Contains(strings.ToLower(o.CustomerPhone), needle)
	}, limit), nil
}
