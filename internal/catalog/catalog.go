// Package catalog loads product records from seed files and bulk dumps into
// a storage backend.
package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/mongodb"
	"github.com/xenking/storefront/internal/storage/postgres"
)

// Record is the wire form of a product in seed files and import dumps.
// Prices are strings so that "1,299.00" style values survive.
type Record struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Name          string `json:"name"`
	Storage       string `json:"storage"`
	OriginalPrice string `json:"originalPrice"`
	OfferPrice    string `json:"offerPrice"`
	Rating        string `json:"rating"`
	RatingCount   string `json:"ratingCount"`
	Description   string `json:"description"`
	Bestseller    bool   `json:"bestseller"`
	ImageURL      string `json:"imageUrl"`
}

// Product converts the record into a catalog product. Records without an id
// get a fresh one.
func (r Record) Product(now time.Time) (*product.Product, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, product.ErrNameRequired
	}
	original, err := product.ParsePrice(r.OriginalPrice)
	if err != nil {
		return nil, errors.Wrap(err, "original price")
	}
	offer, err := product.ParsePrice(r.OfferPrice)
	if err != nil {
		return nil, errors.Wrap(err, "offer price")
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &product.Product{
		ID:            id,
		Category:      r.Category,
		Name:          name,
		Storage:       r.Storage,
		OriginalPrice: original,
		OfferPrice:    offer,
		Rating:        r.Rating,
		RatingCount:   r.RatingCount,
		Description:   r.Description,
		Bestseller:    r.Bestseller,
		ImageURL:      r.ImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Decode parses a JSON array of records.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}
	return records, nil
}

// NormalizeName is the key used to detect duplicate products by name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Store is the write side of the catalog used by the loaders.
type Store interface {
	Names(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, p *product.Product) error
}

// Open connects to the backend named by driver ("postgres" or "mongo").
// The returned func releases the connection.
func Open(ctx context.Context, driver, url, database string) (Store, func(), error) {
	switch driver {
	case "mongo":
		s, err := mongodb.Connect(ctx, url, database)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect mongo")
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, nil, errors.Wrap(err, "ensure indexes")
		}
		return mongodb.NewProductRepository(s), func() { _ = s.Close(context.Background()) }, nil
	case "postgres", "":
		pool, err := postgres.NewPool(ctx, url)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect postgres")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewProductRepository(pool), pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown driver %q", driver)
	}
}
