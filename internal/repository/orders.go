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

const orderColumns = `id, restaurant_id, display_order_number, order_number,
	customer_name, customer_phone, status, created_at, updated_at`

// OrderRepository handles persistence for orders.
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status string
	err := row.Scan(&o.ID, &o.RestaurantID, &o.DisplayOrderNumber, &o.OrderNumber,
		&o.CustomerName, &o.CustomerPhone, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.RestaurantID, o.DisplayOrderNumber, o.OrderNumber,
		o.CustomerName, o.CustomerPhone, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID returns a single order or ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// SetDisplayNumber records the display number and legacy order number on an order.
func (r *OrderRepository) SetDisplayNumber(ctx context.Context, id uuid.UUID, number int, orderNumber string, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET display_order_number = $2, order_number = $3, updated_at = $4 WHERE id = $1`,
		id, number, orderNumber, now,
	)
	if err != nil {
		return fmt.Errorf("set display number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves an order from one status to another. It reports false
// when the order was not in the expected status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), now,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByDisplayNumber returns every order of a restaurant that was ever given
// a display number, most recent first.
func (r *OrderRepository) ListByDisplayNumber(ctx context.Context, restaurantID int64, number, limit int) ([]model.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE restaurant_id = $1 AND display_order_number = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		restaurantID, number, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders by display number: %w", err)
	}
	return collectOrders(rows)
}

// SearchCustomer matches q as a case-insensitive substring of the customer
// name or phone. A nil statuses slice means any status.
func (r *OrderRepository) SearchCustomer(ctx context.Context, restaurantID int64, q string, statuses []model.OrderStatus, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		 FROM orders
		 WHERE restaurant_id = $1
		   AND (customer_name ILIKE $2 OR customer_phone ILIKE $2)`
	args := []any{restaurantID, containsPattern(q), limit}

	if statuses != nil {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND status = ANY($4)`
		args = append(args, names)
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	return collectOrders(rows)
}
