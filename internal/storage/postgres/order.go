package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, total, delivery_info, payment_method, status, source, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Checkout   = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.Checkout backed by
// PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and delivery info are serialized to
// JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return createOrder(ctx, r.pool, o)
}

// Checkout locks the user's cart row, inserts the order built by place and
// deletes the cart in a single transaction. Concurrent checkouts of the same
// user serialize on the row lock; the loser sees no cart.
func (r *OrderRepository) Checkout(ctx context.Context, userID string, place order.PlaceFunc) (*order.Order, error) {
	var placed *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := getCart(ctx, tx, lockCartSQL, userID)
		switch {
		case errors.Is(err, cart.ErrCartNotFound):
			c = nil
		case err != nil:
			return err
		}

		o, err := place(c)
		if err != nil {
			return err
		}
		if err := createOrder(ctx, tx, o); err != nil {
			return err
		}
		if err := deleteCart(ctx, tx, userID); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// ListByUser returns the orders of userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// GetByID returns an order or order.ErrOrderNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func createOrder(ctx context.Context, q querier, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	deliveryJSON, err := json.Marshal(o.DeliveryInfo)
	if err != nil {
		return fmt.Errorf("marshaling delivery info: %w", err)
	}

	_, err = q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, o.Total, deliveryJSON,
		o.PaymentMethod, string(o.Status), string(o.Source), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		itemsJSON    []byte
		deliveryJSON []byte
		status       string
		source       string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.Total, &deliveryJSON,
		&o.PaymentMethod, &status, &source, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(deliveryJSON, &o.DeliveryInfo); err != nil {
		return o, fmt.Errorf("unmarshaling delivery info: %w", err)
	}
	o.Status = order.Status(status)
	o.Source = order.Source(source)
	return o, nil
}
