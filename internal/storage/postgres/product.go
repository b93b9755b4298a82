package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, category, name, storage, original_price, offer_price,
		rating, rating_count, description, bestseller, image_url, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	listProductNamesSQL = `SELECT name FROM products`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	upsertProductSQL = createProductSQL + `
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			storage = EXCLUDED.storage,
			original_price = EXCLUDED.original_price,
			offer_price = EXCLUDED.offer_price,
			rating = EXCLUDED.rating,
			rating_count = EXCLUDED.rating_count,
			description = EXCLUDED.description,
			bestseller = EXCLUDED.bestseller,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at`

	updateProductSQL = `UPDATE products SET
		category = $2, name = $3, storage = $4, original_price = $5, offer_price = $6,
		rating = $7, rating_count = $8, description = $9, bestseller = $10,
		image_url = $11, updated_at = $12
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products in insertion order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Names returns the names of all stored products.
func (r *ProductRepository) Names(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listProductNamesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing product names: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, createProductSQL, productArgs(p)...); err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts p or overwrites the product with the same id.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, productArgs(p)...); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update replaces the mutable fields of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Category, p.Name, p.Storage, p.OriginalPrice, p.OfferPrice,
		p.Rating, p.RatingCount, p.Description, p.Bestseller, p.ImageURL, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func productArgs(p *product.Product) []any {
	return []any{
		p.ID, p.Category, p.Name, p.Storage, p.OriginalPrice, p.OfferPrice,
		p.Rating, p.RatingCount, p.Description, p.Bestseller, p.ImageURL,
		p.CreatedAt, p.UpdatedAt,
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Category, &p.Name, &p.Storage, &p.OriginalPrice, &p.OfferPrice,
		&p.Rating, &p.RatingCount, &p.Description, &p.Bestseller, &p.ImageURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
