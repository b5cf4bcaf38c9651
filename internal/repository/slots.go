package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, restaurant_id, display_number, status, current_order_id,
	allocated_at, cooldown_expires_at, created_at, updated_at`

// SlotRepository handles persistence for display-number slots.
type SlotRepository struct {
	db *pgxpool.Pool
}

// NewSlotRepository constructs a SlotRepository.
func NewSlotRepository(db *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{db: db}
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var s model.Slot
	var status string
	err := row.Scan(&s.ID, &s.RestaurantID, &s.DisplayNumber, &status, &s.CurrentOrderID,
		&s.AllocatedAt, &s.CooldownExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.SlotStatus(status)
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]model.Slot, error) {
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// ClaimLowestAvailable allocates the lowest-numbered available slot of a
// restaurant to orderID.
//
// The candidate row is selected with FOR UPDATE SKIP LOCKED: a row another
// transaction is already claiming is skipped, so concurrent callers never wait
// on each other and never receive the same row. Each one either locks a
// different slot or sees none left and gets ErrNoAvailableSlot.
func (r *SlotRepository) ClaimLowestAvailable(ctx context.Context, restaurantID int64, orderID uuid.UUID, now time.Time) (*model.Slot, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var slotID int64
	err = tx.QueryRow(ctx,
		`SELECT id
		 FROM display_order_slots
		 WHERE restaurant_id = $1 AND status = 'available'
		 ORDER BY display_number ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		restaurantID,
	).Scan(&slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAvailableSlot
		}
		return nil, fmt.Errorf("lock available slot: %w", err)
	}

	slot, err := scanSlot(tx.QueryRow(ctx,
		`UPDATE display_order_slots
		 SET status = 'allocated', current_order_id = $2, allocated_at = $3,
		     cooldown_expires_at = NULL, updated_at = $3
		 WHERE id = $1
		 RETURNING `+slotColumns,
		slotID, orderID, now,
	))
	if err != nil {
		return nil, fmt.Errorf("allocate slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return slot, nil
}

// MaxDisplayNumber returns the highest display number ever created for a
// restaurant, or 0 when it has no slots.
func (r *SlotRepository) MaxDisplayNumber(ctx context.Context, restaurantID int64) (int, error) {
	var highest int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(display_number), 0) FROM display_order_slots WHERE restaurant_id = $1`,
		restaurantID,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max display number: %w", err)
	}
	return highest, nil
}

// InsertAllocated creates a new slot already allocated to orderID. It returns
// ErrSlotTaken when the number was created concurrently by another caller.
func (r *SlotRepository) InsertAllocated(ctx context.Context, restaurantID int64, number int, orderID uuid.UUID, now time.Time) (*model.Slot, error) {
	slot, err := scanSlot(r.db.QueryRow(ctx,
		`INSERT INTO display_order_slots
		   (restaurant_id, display_number, status, current_order_id, allocated_at, created_at, updated_at)
		 VALUES ($1, $2, 'allocated', $3, $4, $4, $4)
		 RETURNING `+slotColumns,
		restaurantID, number, orderID, now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}
	return slot, nil
}

// ExpireCooldowns moves every cooldown slot whose window has passed back to
// available and returns the freed display numbers. Rows another transaction
// has locked are skipped; whoever holds them is already changing them.
func (r *SlotRepository) ExpireCooldowns(ctx context.Context, restaurantID int64, now time.Time) ([]int, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE display_order_slots
		 SET status = 'available', current_order_id = NULL, allocated_at = NULL,
		     cooldown_expires_at = NULL, updated_at = $2
		 WHERE id IN (
		       SELECT id FROM display_order_slots
		       WHERE restaurant_id = $1 AND status = 'cooldown' AND cooldown_expires_at <= $2
		       FOR UPDATE SKIP LOCKED)
		 RETURNING display_number`,
		restaurantID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("expire cooldowns: %w", err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan display number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// ListAllocatedBefore returns allocated slots whose allocation started before
// the given instant.
func (r *SlotRepository) ListAllocatedBefore(ctx context.Context, restaurantID int64, before time.Time) ([]model.Slot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+`
		 FROM display_order_slots
		 WHERE restaurant_id = $1 AND status = 'allocated' AND allocated_at < $2
		 ORDER BY display_number ASC`,
		restaurantID, before,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale slots: %w", err)
	}
	return collectSlots(rows)
}

// ListOccupied returns every allocated or cooldown slot of a restaurant.
func (r *SlotRepository) ListOccupied(ctx context.Context, restaurantID int64) ([]model.Slot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+`
		 FROM display_order_slots
		 WHERE restaurant_id = $1 AND status IN ('allocated', 'cooldown')
		 ORDER BY display_number ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	return collectSlots(rows)
}

// Reset makes a slot available again, but only while it still belongs to
// orderID. It reports whether the row changed; a concurrent release or
// reallocation makes it a no-op, and so does a row another transaction holds
// locked at that moment.
func (r *SlotRepository) Reset(ctx context.Context, slotID int64, orderID uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE display_order_slots
		 SET status = 'available', current_order_id = NULL, allocated_at = NULL,
		     cooldown_expires_at = NULL, updated_at = $3
		 WHERE id = (
		       SELECT id FROM display_order_slots
		       WHERE id = $1 AND current_order_id = $2 AND status IN ('allocated', 'cooldown')
		       FOR UPDATE SKIP LOCKED)`,
		slotID, orderID, now,
	)
	if err != nil {
		return false, fmt.Errorf("reset slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// StartCooldown moves an allocated slot owned by orderID into cooldown.
func (r *SlotRepository) StartCooldown(ctx context.Context, slotID int64, orderID uuid.UUID, until, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE display_order_slots
		 SET status = 'cooldown', cooldown_expires_at = $3, updated_at = $4
		 WHERE id = $1 AND current_order_id = $2 AND status = 'allocated'`,
		slotID, orderID, until, now,
	)
	if err != nil {
		return false, fmt.Errorf("start cooldown: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindByOrder returns the slot pointing at orderID, preferring an allocated
// one over a slot still cooling down from an earlier release.
func (r *SlotRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*model.Slot, error) {
	slot, err := scanSlot(r.db.QueryRow(ctx,
		`SELECT `+slotColumns+`
		 FROM display_order_slots
		 WHERE current_order_id = $1 AND status IN ('allocated', 'cooldown')
		 ORDER BY status = 'allocated' DESC, updated_at DESC
		 LIMIT 1`,
		orderID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find slot by order: %w", err)
	}
	return slot, nil
}

// FindAllocated returns the allocated slot holding a display number.
func (r *SlotRepository) FindAllocated(ctx context.Context, restaurantID int64, number int) (*model.Slot, error) {
	slot, err := scanSlot(r.db.QueryRow(ctx,
		`SELECT `+slotColumns+`
		 FROM display_order_slots
		 WHERE restaurant_id = $1 AND display_number = $2 AND status = 'allocated'`,
		restaurantID, number,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find allocated slot: %w", err)
	}
	return slot, nil
}

// CountByStatus tallies a restaurant's slots per status.
func (r *SlotRepository) CountByStatus(ctx context.Context, restaurantID int64) (model.SlotCounts, error) {
	var c model.SlotCounts
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'available'),
		        COUNT(*) FILTER (WHERE status = 'allocated'),
		        COUNT(*) FILTER (WHERE status = 'cooldown')
		 FROM display_order_slots
		 WHERE restaurant_id = $1`,
		restaurantID,
	).Scan(&c.Total, &c.Available, &c.Allocated, &c.Cooldown)
	if err != nil {
		return model.SlotCounts{}, fmt.Errorf("count slots: %w", err)
	}
	return c, nil
}

// ListRestaurantIDs returns every restaurant that owns at least one slot.
func (r *SlotRepository) ListRestaurantIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT restaurant_id FROM display_order_slots ORDER BY restaurant_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan restaurant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
