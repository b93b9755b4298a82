package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNameRequired is returned when a product is saved without a name.
	ErrNameRequired = errors.New("product name required")
	// ErrInvalidPrice is returned when a price cannot be parsed or is negative.
	ErrInvalidPrice = errors.New("invalid price")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string
	Category      string
	Name          string
	Storage       string
	OriginalPrice decimal.Decimal
	OfferPrice    decimal.Decimal
	Rating        string
	RatingCount   string
	Description   string
	Bestseller    bool
	ImageURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	// Update replaces every mutable field of an existing product.
	// Returns ErrNotFound when no product has p.ID.
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// ParsePrice parses a decimal price, accepting thousands separators
// such as "1,299.00". Negative prices are rejected.
func ParsePrice(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidPrice, "parse %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrInvalidPrice, "negative %q", s)
	}
	return d, nil
}
