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

	"github.com/xenking/storefront/internal/domain/cart"
)

type lineDocument struct {
	ProductID  string               `bson:"productId"`
	Name       string               `bson:"name"`
	OfferPrice primitive.Decimal128 `bson:"offerPrice"`
	Quantity   int                  `bson:"quantity"`
}

type cartDocument struct {
	UserID    string         `bson:"_id"`
	Items     []lineDocument `bson:"items"`
	CreatedAt time.Time      `bson:"createdAt"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

func newLineDocuments(items []cart.Item) ([]lineDocument, error) {
	docs := make([]lineDocument, len(items))
	for i, it := range items {
		price, err := toDecimal128(it.OfferPrice)
		if err != nil {
			return nil, err
		}
		docs[i] = lineDocument{
			ProductID:  it.ProductID,
			Name:       it.Name,
			OfferPrice: price,
			Quantity:   it.Quantity,
		}
	}
	return docs, nil
}

func lineItems(docs []lineDocument) ([]cart.Item, error) {
	items := make([]cart.Item, len(docs))
	for i, d := range docs {
		price, err := fromDecimal128(d.OfferPrice)
		if err != nil {
			return nil, err
		}
		items[i] = cart.Item{
			ProductID:  d.ProductID,
			Name:       d.Name,
			OfferPrice: price,
			Quantity:   d.Quantity,
		}
	}
	return items, nil
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository on the carts collection.
type CartRepository struct {
	coll *mongo.Collection
}

// NewCartRepository returns a CartRepository for the store.
func NewCartRepository(s *Store) *CartRepository {
	return &CartRepository{coll: s.collection(cartsCollection)}
}

// Get returns the cart of userID or cart.ErrCartNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	return getCart(ctx, r.coll, userID)
}

// Save replaces the cart document, creating it when missing.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := newLineDocuments(c.Items)
	if err != nil {
		return err
	}
	doc := cartDocument{
		UserID:    c.UserID,
		Items:     items,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	_, err = r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: c.UserID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving cart of %q: %w", c.UserID, err)
	}
	return nil
}

// Delete removes the cart of userID if present.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	return deleteCart(ctx, r.coll, userID)
}

func getCart(ctx context.Context, coll *mongo.Collection, userID string) (*cart.Cart, error) {
	var doc cartDocument
	err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}
	items, err := lineItems(doc.Items)
	if err != nil {
		return nil, err
	}
	return &cart.Cart{
		UserID:    doc.UserID,
		Items:     items,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func deleteCart(ctx context.Context, coll *mongo.Collection, userID string) error {
	if _, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: userID}}); err != nil {
		return fmt.Errorf("deleting cart of %q: %w", userID, err)
	}
	return nil
}
