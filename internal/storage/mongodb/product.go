package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/storefront/internal/domain/product"
)

type productDocument struct {
	ID            string               `bson:"_id"`
	Category      string               `bson:"category"`
	Name          string               `bson:"name"`
	Storage       string               `bson:"storage"`
	OriginalPrice primitive.Decimal128 `bson:"originalPrice"`
	OfferPrice    primitive.Decimal128 `bson:"offerPrice"`
	Rating        string               `bson:"rating"`
	RatingCount   string               `bson:"ratingCount"`
	Description   string               `bson:"description"`
	Bestseller    bool                 `bson:"bestseller"`
	ImageURL      string               `bson:"imageUrl"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func newProductDocument(p *product.Product) (*productDocument, error) {
	original, err := toDecimal128(p.OriginalPrice)
	if err != nil {
		return nil, err
	}
	offer, err := toDecimal128(p.OfferPrice)
	if err != nil {
		return nil, err
	}
	return &productDocument{
		ID:            p.ID,
		Category:      p.Category,
		Name:          p.Name,
		Storage:       p.Storage,
		OriginalPrice: original,
		OfferPrice:    offer,
		Rating:        p.Rating,
		RatingCount:   p.RatingCount,
		Description:   p.Description,
		Bestseller:    p.Bestseller,
		ImageURL:      p.ImageURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func (d *productDocument) product() (product.Product, error) {
	original, err := fromDecimal128(d.OriginalPrice)
	if err != nil {
		return product.Product{}, err
	}
	offer, err := fromDecimal128(d.OfferPrice)
	if err != nil {
		return product.Product{}, err
	}
	return product.Product{
		ID:            d.ID,
		Category:      d.Category,
		Name:          d.Name,
		Storage:       d.Storage,
		OriginalPrice: original,
		OfferPrice:    offer,
		Rating:        d.Rating,
		RatingCount:   d.RatingCount,
		Description:   d.Description,
		Bestseller:    d.Bestseller,
		ImageURL:      d.ImageURL,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on the products collection.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository returns a ProductRepository for the store.
func NewProductRepository(s *Store) *ProductRepository {
	return &ProductRepository{coll: s.collection(productsCollection)}
}

// List returns all products in insertion order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.D{}, opts)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := doc.product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	return r.find(ctx, filter)
}

// Names returns the names of all stored products.
func (r *ProductRepository) Names(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "name", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing product names: %w", err)
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	doc, err := newProductDocument(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts p or replaces the product with the same id.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	doc, err := newProductDocument(p)
	if err != nil {
		return err
	}
	_, err = r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: p.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update replaces the mutable fields of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	doc, err := newProductDocument(p)
	if err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "category", Value: doc.Category},
		{Key: "name", Value: doc.Name},
		{Key: "storage", Value: doc.Storage},
		{Key: "originalPrice", Value: doc.OriginalPrice},
		{Key: "offerPrice", Value: doc.OfferPrice},
		{Key: "rating", Value: doc.Rating},
		{Key: "ratingCount", Value: doc.RatingCount},
		{Key: "description", Value: doc.Description},
		{Key: "bestseller", Value: doc.Bestseller},
		{Key: "imageUrl", Value: doc.ImageURL},
		{Key: "updatedAt", Value: doc.UpdatedAt},
	}}}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: p.ID}}, update)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]product.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("finding products: %w", err)
	}
	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}

	products := make([]product.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].product()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}
