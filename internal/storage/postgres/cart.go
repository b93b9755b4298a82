package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT user_id, items, created_at, updated_at FROM carts WHERE user_id = $1`

	lockCartSQL = getCartSQL + ` FOR UPDATE`

	saveCartSQL = `INSERT INTO carts (user_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = EXCLUDED.updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository with one row per user and the
// lines stored as a JSONB array.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the cart of userID or cart.ErrCartNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	return getCart(ctx, r.pool, getCartSQL, userID)
}

// Save upserts the cart.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	_, err = r.pool.Exec(ctx, saveCartSQL, c.UserID, itemsJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving cart of %q: %w", c.UserID, err)
	}
	return nil
}

// Delete removes the cart of userID if present.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	return deleteCart(ctx, r.pool, userID)
}

func getCart(ctx context.Context, q querier, sql, userID string) (*cart.Cart, error) {
	rows, err := q.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}
	return c, nil
}

func deleteCart(ctx context.Context, q querier, userID string) error {
	if _, err := q.Exec(ctx, deleteCartSQL, userID); err != nil {
		return fmt.Errorf("deleting cart of %q: %w", userID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (*cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
	)
	if err := row.Scan(&c.UserID, &itemsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return &c, nil
}
