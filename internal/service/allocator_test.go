package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/events"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/repository"
	"github.com/google/uuid"
)

const testRestaurant int64 = 7

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) decoded(t *testing.T) []events.SlotEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.SlotEvent, 0, len(p.payloads))
	for _, raw := range p.payloads {
		var ev events.SlotEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type testEnv struct {
	svc    *OrderNumberService
	slots  *repository.MemorySlotRepository
	orders *repository.MemoryOrderRepository
	clock  *fakeClock
	pub    *recordingPublisher
}

func newTestEnv() *testEnv {
	env := &testEnv{
		slots:  repository.NewMemorySlotRepository(),
		orders: repository.NewMemoryOrderRepository(),
		clock:  newFakeClock(),
		pub:    &recordingPublisher{},
	}
	env.svc = NewOrderNumberService(AllocatorDeps{
		Slots:   env.slots,
		Orders:  env.orders,
		Emitter: events.NewSlotEmitter(env.pub, "test"),
		Clock:   env.clock,
	}, DefaultPolicy())
	return env
}

// newOrder stores an order the way the host would before allocating.
func (e *testEnv) newOrder(t *testing.T, status model.OrderStatus) uuid.UUID {
	t.Helper()
	now := e.clock.Now()
	o := &model.Order{
		ID:           uuid.New(),
		RestaurantID: testRestaurant,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.orders.Create(context.Background(), o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o.ID
}

func (e *testEnv) allocate(t *testing.T, orderID uuid.UUID) int {
	t.Helper()
	n, err := e.svc.AllocateDisplayNumber(context.Background(), testRestaurant, orderID)
	if err != nil {
		t.Fatalf("AllocateDisplayNumber() error = %v", err)
	}
	return n
}

func (e *testEnv) slot(t *testing.T, number int) model.Slot {
	t.Helper()
	for _, s := range e.slots.Snapshot(testRestaurant) {
		if s.DisplayNumber == number {
			return s
		}
	}
	t.Fatalf("slot %d not found", number)
	return model.Slot{}
}

func TestGenerateInternalOrderID(t *testing.T) {
	env := newTestEnv()

	a := env.svc.GenerateInternalOrderID()
	b := env.svc.GenerateInternalOrderID()
	if a == uuid.Nil || b == uuid.Nil {
		t.Fatal("GenerateInternalOrderID() returned nil UUID")
	}
	if a == b {
		t.Error("GenerateInternalOrderID() returned the same id twice")
	}
}

func TestAllocateDisplayNumberSequential(t *testing.T) {
	env := newTestEnv()

	for want := 1; want <= 3; want++ {
		if got := env.allocate(t, env.newOrder(t, model.OrderPending)); got != want {
			t.Errorf("allocation %d got number %d", want, got)
		}
	}

	if got := env.pub.count("test.allocated"); got != 3 {
		t.Errorf("allocated events = %d, want 3", got)
	}
}

func TestAllocateDisplayNumberSameOrderKeepsNumber(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	first := env.allocate(t, id)
	second := env.allocate(t, id)
	if first != second {
		t.Fatalf("same order got %d and %d, want one number", first, second)
	}

	if err := env.svc.ReleaseDisplayNumber(ctx, id, true); err != nil {
		t.Fatalf("ReleaseDisplayNumber() error = %v", err)
	}
	stats, err := env.svc.GetSlotStats(ctx, testRestaurant)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.Available != 1 || stats.Allocated != 0 {
		t.Errorf("stats after release = %+v, want one available slot", stats)
	}
	if got := env.pub.count("test.allocated"); got != 1 {
		t.Errorf("allocated events = %d, want 1", got)
	}
}

func TestAllocateDisplayNumberAfterReleaseWhileCoolingDown(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	first := env.allocate(t, id)
	if err := env.svc.ReleaseDisplayNumber(ctx, id, false); err != nil {
		t.Fatal(err)
	}

	again := env.allocate(t, id)
	if again == first {
		t.Fatalf("got cooling-down number %d again", first)
	}
	if err := env.svc.ReleaseDisplayNumber(ctx, id, true); err != nil {
		t.Fatal(err)
	}
	if got := env.slot(t, again); got.Status != model.SlotAvailable {
		t.Errorf("newer slot status = %s, want available", got.Status)
	}
	if got := env.slot(t, first); got.Status != model.SlotCooldown {
		t.Errorf("older slot status = %s, want cooldown", got.Status)
	}
}

func TestSlotEventsUseServiceClock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	env.allocate(t, id)
	env.clock.Advance(time.Minute)
	if err := env.svc.ReleaseDisplayNumber(ctx, id, false); err != nil {
		t.Fatal(err)
	}

	evs := env.pub.decoded(t)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	start := newFakeClock().Now()
	if !evs[0].OccurredAt.Equal(start) {
		t.Errorf("allocated OccurredAt = %s, want %s", evs[0].OccurredAt, start)
	}
	if !evs[1].OccurredAt.Equal(start.Add(time.Minute)) {
		t.Errorf("released OccurredAt = %s, want %s", evs[1].OccurredAt, start.Add(time.Minute))
	}
}

func TestAllocateDisplayNumberRejectsNilOrder(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.AllocateDisplayNumber(context.Background(), testRestaurant, uuid.Nil); err == nil {
		t.Fatal("AllocateDisplayNumber() should reject a nil order id")
	}
}

func TestAllocateDisplayNumberPrefersLowestAvailable(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		id := env.newOrder(t, model.OrderPending)
		env.allocate(t, id)
		ids = append(ids, id)
	}

	for _, id := range []uuid.UUID{ids[3], ids[1]} {
		if err := env.svc.ReleaseDisplayNumber(ctx, id, true); err != nil {
			t.Fatalf("ReleaseDisplayNumber() error = %v", err)
		}
	}

	if got := env.allocate(t, env.newOrder(t, model.OrderPending)); got != 2 {
		t.Errorf("got number %d, want lowest available 2", got)
	}
}

func TestAllocateDisplayNumberRestaurantsAreIndependent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.allocate(t, env.newOrder(t, model.OrderPending))

	n, err := env.svc.AllocateDisplayNumber(ctx, testRestaurant+1, uuid.New())
	if err != nil {
		t.Fatalf("AllocateDisplayNumber() error = %v", err)
	}
	if n != 1 {
		t.Errorf("other restaurant got %d, want 1", n)
	}
}

func TestReleaseDisplayNumberIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, id)

	if err := env.svc.ReleaseDisplayNumber(ctx, id, false); err != nil {
		t.Fatalf("first release error = %v", err)
	}
	first := env.slot(t, n)

	env.clock.Advance(time.Minute)
	if err := env.svc.ReleaseDisplayNumber(ctx, id, false); err != nil {
		t.Fatalf("second release error = %v", err)
	}
	second := env.slot(t, n)

	if first.Status != model.SlotCooldown || second.Status != model.SlotCooldown {
		t.Fatalf("status = %s then %s, want cooldown", first.Status, second.Status)
	}
	if !first.CooldownExpiresAt.Equal(*second.CooldownExpiresAt) {
		t.Error("second release should not extend the cooldown")
	}
	if got := env.pub.count("test.released"); got != 1 {
		t.Errorf("released events = %d, want 1", got)
	}
}

func TestReleaseDisplayNumberWithoutSlot(t *testing.T) {
	env := newTestEnv()

	if err := env.svc.ReleaseDisplayNumber(context.Background(), uuid.New(), false); err != nil {
		t.Fatalf("ReleaseDisplayNumber() error = %v, want nil", err)
	}
	if err := env.svc.ReleaseDisplayNumber(context.Background(), uuid.New(), true); err != nil {
		t.Fatalf("ReleaseDisplayNumber(immediate) error = %v, want nil", err)
	}
}

func TestReleaseDisplayNumberSetsCooldown(t *testing.T) {
	env := newTestEnv()

	id := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, id)
	if err := env.svc.ReleaseDisplayNumber(context.Background(), id, false); err != nil {
		t.Fatal(err)
	}

	s := env.slot(t, n)
	if s.CurrentOrderID == nil || *s.CurrentOrderID != id {
		t.Error("cooldown slot should keep its order reference")
	}
	want := env.clock.Now().Add(DefaultCooldown)
	if s.CooldownExpiresAt == nil || !s.CooldownExpiresAt.Equal(want) {
		t.Errorf("CooldownExpiresAt = %v, want %v", s.CooldownExpiresAt, want)
	}
}

func TestReuseAfterCooldown(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, a)
	if err := env.svc.ReleaseDisplayNumber(ctx, a, false); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(DefaultCooldown + time.Second)

	b := env.newOrder(t, model.OrderPending)
	if got := env.allocate(t, b); got != n {
		t.Errorf("after cooldown got %d, want reused %d", got, n)
	}
	if got := env.pub.count("test.reclaimed"); got != 1 {
		t.Errorf("reclaimed events = %d, want 1", got)
	}
}

func TestNoReuseDuringCooldown(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, a)
	if err := env.svc.ReleaseDisplayNumber(ctx, a, false); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(DefaultCooldown - time.Second)

	got := env.allocate(t, env.newOrder(t, model.OrderPending))
	if got == n {
		t.Fatalf("number %d was reused during cooldown", n)
	}
	if got != n+1 {
		t.Errorf("got %d, want new number %d", got, n+1)
	}
}

func TestImmediateRelease(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, a)

	if err := env.svc.ReleaseDisplayNumber(ctx, a, true); err != nil {
		t.Fatal(err)
	}

	s := env.slot(t, n)
	if s.Status != model.SlotAvailable {
		t.Errorf("status = %s, want available", s.Status)
	}
	if s.CurrentOrderID != nil || s.AllocatedAt != nil || s.CooldownExpiresAt != nil {
		t.Errorf("available slot kept references: %+v", s)
	}

	if got := env.allocate(t, env.newOrder(t, model.OrderPending)); got != n {
		t.Errorf("got %d, want immediately reused %d", got, n)
	}
}

func TestImmediateReleaseEndsCooldown(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, a)
	if err := env.svc.ReleaseDisplayNumber(ctx, a, false); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.ReleaseDisplayNumber(ctx, a, true); err != nil {
		t.Fatal(err)
	}

	if s := env.slot(t, n); s.Status != model.SlotAvailable {
		t.Errorf("status = %s, want available", s.Status)
	}
}

func TestCapacityExhausted(t *testing.T) {
	env := newTestEnv()
	now := env.clock.Now()

	for n := model.MinDisplayNumber; n <= model.MaxDisplayNumber; n++ {
		id := uuid.New()
		env.slots.Seed(model.Slot{
			RestaurantID:   testRestaurant,
			DisplayNumber:  n,
			Status:         model.SlotAllocated,
			CurrentOrderID: &id,
			AllocatedAt:    &now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	_, err := env.svc.AllocateDisplayNumber(context.Background(), testRestaurant, uuid.New())
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("error = %v, want ErrCapacityExhausted", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) || capErr.RestaurantID != testRestaurant || capErr.Max != model.MaxDisplayNumber {
		t.Errorf("error = %#v, want *CapacityError for restaurant %d", err, testRestaurant)
	}

	stats, err := env.svc.GetSlotStats(context.Background(), testRestaurant)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != model.MaxDisplayNumber {
		t.Errorf("pool grew to %d slots", stats.Total)
	}
}

func TestCapacityCountsCooldownSlots(t *testing.T) {
	env := newTestEnv()
	now := env.clock.Now()
	until := now.Add(time.Hour)

	for n := model.MinDisplayNumber; n <= model.MaxDisplayNumber; n++ {
		id := uuid.New()
		env.slots.Seed(model.Slot{
			RestaurantID:      testRestaurant,
			DisplayNumber:     n,
			Status:            model.SlotCooldown,
			CurrentOrderID:    &id,
			AllocatedAt:       &now,
			CooldownExpiresAt: &until,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	if _, err := env.svc.AllocateDisplayNumber(context.Background(), testRestaurant, uuid.New()); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("error = %v, want ErrCapacityExhausted", err)
	}

	env.clock.Advance(time.Hour)
	n, err := env.svc.AllocateDisplayNumber(context.Background(), testRestaurant, uuid.New())
	if err != nil {
		t.Fatalf("after cooldown error = %v", err)
	}
	if n != 1 {
		t.Errorf("got %d, want 1", n)
	}
}

func TestConcurrentAllocation(t *testing.T) {
	env := newTestEnv()
	const callers = 500

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[int]uuid.UUID, callers)
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			<-start
			n, err := env.svc.AllocateDisplayNumber(context.Background(), testRestaurant, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if prev, dup := numbers[n]; dup {
				errs = append(errs, errors.New("duplicate number for "+prev.String()+" and "+id.String()))
				return
			}
			numbers[n] = id
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("%d allocations failed, first: %v", len(errs), errs[0])
	}
	if len(numbers) != callers {
		t.Fatalf("got %d distinct numbers, want %d", len(numbers), callers)
	}
	for n := 1; n <= callers; n++ {
		if _, ok := numbers[n]; !ok {
			t.Errorf("number %d was never handed out", n)
		}
	}

	allocated := make(map[int]bool)
	for _, s := range env.slots.Snapshot(testRestaurant) {
		if s.Status != model.SlotAllocated {
			continue
		}
		if allocated[s.DisplayNumber] {
			t.Errorf("two allocated slots share number %d", s.DisplayNumber)
		}
		allocated[s.DisplayNumber] = true
	}
}

func TestStaleAllocationReclaimed(t *testing.T) {
	tests := []struct {
		name        string
		status      model.OrderStatus
		age         time.Duration
		wantReclaim bool
	}{
		{name: "completedPastWindow", status: model.OrderCompleted, age: DefaultActiveWindow + time.Minute, wantReclaim: true},
		{name: "cancelledPastWindow", status: model.OrderCancelled, age: DefaultActiveWindow + time.Minute, wantReclaim: true},
		{name: "completedWithinWindow", status: model.OrderCompleted, age: DefaultActiveWindow - time.Minute, wantReclaim: false},
		{name: "activePastWindow", status: model.OrderPreparing, age: DefaultActiveWindow + time.Minute, wantReclaim: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()

			id := env.newOrder(t, model.OrderPending)
			n := env.allocate(t, id)
			if tt.status != model.OrderPending {
				if _, err := env.orders.UpdateStatus(ctx, id, model.OrderPending, tt.status, env.clock.Now()); err != nil {
					t.Fatal(err)
				}
			}
			env.clock.Advance(tt.age)

			reclaimed, err := env.svc.ReclaimSlots(ctx, testRestaurant)
			if err != nil {
				t.Fatalf("ReclaimSlots() error = %v", err)
			}
			gotReclaim := env.slot(t, n).Status == model.SlotAvailable
			if gotReclaim != tt.wantReclaim {
				t.Errorf("reclaimed = %v (count %d), want %v", gotReclaim, reclaimed, tt.wantReclaim)
			}
		})
	}
}

func TestStaleAllocationReusedByAllocate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, id)
	if _, err := env.orders.UpdateStatus(ctx, id, model.OrderPending, model.OrderCompleted, env.clock.Now()); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(DefaultActiveWindow + time.Hour)

	if got := env.allocate(t, env.newOrder(t, model.OrderPending)); got != n {
		t.Errorf("got %d, want reclaimed %d", got, n)
	}
}

func TestCleanupOrphanedSlots(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := env.clock.Now()

	kept := env.newOrder(t, model.OrderPending)
	env.allocate(t, kept)

	ghost := uuid.New()
	env.slots.Seed(model.Slot{
		RestaurantID:   testRestaurant,
		DisplayNumber:  5,
		Status:         model.SlotAllocated,
		CurrentOrderID: &ghost,
		AllocatedAt:    &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	ghostCooling := uuid.New()
	until := now.Add(time.Hour)
	env.slots.Seed(model.Slot{
		RestaurantID:      testRestaurant,
		DisplayNumber:     6,
		Status:            model.SlotCooldown,
		CurrentOrderID:    &ghostCooling,
		AllocatedAt:       &now,
		CooldownExpiresAt: &until,
		CreatedAt:         now,
		UpdatedAt:         now,
	})

	reset, err := env.svc.CleanupOrphanedSlots(ctx, testRestaurant)
	if err != nil {
		t.Fatalf("CleanupOrphanedSlots() error = %v", err)
	}
	if reset != 2 {
		t.Errorf("reset = %d, want 2", reset)
	}
	for _, n := range []int{5, 6} {
		s := env.slot(t, n)
		if s.Status != model.SlotAvailable || s.CurrentOrderID != nil {
			t.Errorf("slot %d = %s/%v, want available without order", n, s.Status, s.CurrentOrderID)
		}
	}
	if s := env.slot(t, 1); s.Status != model.SlotAllocated {
		t.Errorf("slot of existing order became %s", s.Status)
	}

	reset, err = env.svc.CleanupOrphanedSlots(ctx, testRestaurant)
	if err != nil || reset != 0 {
		t.Errorf("second sweep = %d, %v; want 0, nil", reset, err)
	}
}

func TestCleanupOrphanedSlotsAfterOrderDeleted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, id)
	env.orders.Delete(ctx, id)

	if reset, err := env.svc.CleanupOrphanedSlots(ctx, testRestaurant); err != nil || reset != 1 {
		t.Fatalf("CleanupOrphanedSlots() = %d, %v; want 1, nil", reset, err)
	}
	if got := env.allocate(t, env.newOrder(t, model.OrderPending)); got != n {
		t.Errorf("got %d, want freed %d", got, n)
	}
}

func TestGetSlotStats(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		id := env.newOrder(t, model.OrderPending)
		env.allocate(t, id)
		ids = append(ids, id)
	}
	if err := env.svc.ReleaseDisplayNumber(ctx, ids[0], false); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.ReleaseDisplayNumber(ctx, ids[1], true); err != nil {
		t.Fatal(err)
	}

	stats, err := env.svc.GetSlotStats(ctx, testRestaurant)
	if err != nil {
		t.Fatalf("GetSlotStats() error = %v", err)
	}
	want := model.SlotStats{
		RestaurantID:       testRestaurant,
		Total:              4,
		Available:          1,
		Allocated:          2,
		Cooldown:           1,
		MaxPossible:        9999,
		UtilizationPercent: 0.02,
	}
	if stats != want {
		t.Errorf("GetSlotStats() = %+v, want %+v", stats, want)
	}
}

func TestLookupByDisplayNumber(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	n := env.allocate(t, id)

	got, err := env.svc.LookupByDisplayNumber(ctx, testRestaurant, n)
	if err != nil || got == nil || got.ID != id {
		t.Fatalf("LookupByDisplayNumber() = %v, %v; want order %s", got, err, id)
	}

	if err := env.svc.ReleaseDisplayNumber(ctx, id, false); err != nil {
		t.Fatal(err)
	}
	got, err = env.svc.LookupByDisplayNumber(ctx, testRestaurant, n)
	if err != nil || got != nil {
		t.Errorf("after release LookupByDisplayNumber() = %v, %v; want nil, nil", got, err)
	}

	for _, bad := range []int{0, -1, 10000} {
		if got, err := env.svc.LookupByDisplayNumber(ctx, testRestaurant, bad); got != nil || err != nil {
			t.Errorf("LookupByDisplayNumber(%d) = %v, %v; want nil, nil", bad, got, err)
		}
	}
}

func TestLookupByInternalID(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	id := env.newOrder(t, model.OrderPending)
	got, err := env.svc.LookupByInternalID(ctx, id)
	if err != nil || got == nil || got.ID != id {
		t.Fatalf("LookupByInternalID() = %v, %v", got, err)
	}

	got, err = env.svc.LookupByInternalID(ctx, uuid.New())
	if err != nil || got != nil {
		t.Errorf("unknown id = %v, %v; want nil, nil", got, err)
	}
}

func TestNewOrderNumberServicePolicyDefaults(t *testing.T) {
	svc := NewOrderNumberService(AllocatorDeps{}, Policy{Cooldown: -time.Hour})

	p := svc.Policy()
	if p.Cooldown != 0 {
		t.Errorf("Cooldown = %v, want 0", p.Cooldown)
	}
	if p.ActiveWindow != DefaultActiveWindow {
		t.Errorf("ActiveWindow = %v, want %v", p.ActiveWindow, DefaultActiveWindow)
	}
}
