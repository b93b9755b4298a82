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
	"github.com/xenking/storefront/internal/domain/order"
)

type deliveryDocument struct {
	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
	Email     string `bson:"email"`
	Street    string `bson:"street"`
	City      string `bson:"city"`
	State     string `bson:"state"`
	Zipcode   string `bson:"zipcode"`
	Country   string `bson:"country"`
	Phone     string `bson:"phone"`
}

type orderDocument struct {
	ID            string               `bson:"_id"`
	UserID        string               `bson:"userId"`
	Items         []lineDocument       `bson:"items"`
	Total         primitive.Decimal128 `bson:"total"`
	DeliveryInfo  deliveryDocument     `bson:"deliveryInfo"`
	PaymentMethod string               `bson:"paymentMethod"`
	Status        string               `bson:"status"`
	Source        string               `bson:"source"`
	CreatedAt     time.Time            `bson:"createdAt"`
}

func newOrderDocument(o *order.Order) (*orderDocument, error) {
	items, err := newLineDocuments(o.Items)
	if err != nil {
		return nil, err
	}
	total, err := toDecimal128(o.Total)
	if err != nil {
		return nil, err
	}
	return &orderDocument{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		Total:         total,
		DeliveryInfo:  deliveryDocument(o.DeliveryInfo),
		PaymentMethod: o.PaymentMethod,
		Status:        string(o.Status),
		Source:        string(o.Source),
		CreatedAt:     o.CreatedAt,
	}, nil
}

func (d *orderDocument) order() (order.Order, error) {
	items, err := lineItems(d.Items)
	if err != nil {
		return order.Order{}, err
	}
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return order.Order{}, err
	}
	return order.Order{
		ID:            d.ID,
		UserID:        d.UserID,
		Items:         items,
		Total:         total,
		DeliveryInfo:  order.DeliveryInfo(d.DeliveryInfo),
		PaymentMethod: d.PaymentMethod,
		Status:        order.Status(d.Status),
		Source:        order.Source(d.Source),
		CreatedAt:     d.CreatedAt,
	}, nil
}

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Checkout   = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.Checkout on the
// orders and carts collections.
type OrderRepository struct {
	orders *mongo.Collection
	carts  *mongo.Collection
}

// NewOrderRepository returns an OrderRepository for the store.
func NewOrderRepository(s *Store) *OrderRepository {
	return &OrderRepository{
		orders: s.collection(ordersCollection),
		carts:  s.collection(cartsCollection),
	}
}

// Create inserts a new order document.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := newOrderDocument(o)
	if err != nil {
		return err
	}
	if _, err := r.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Checkout reads the cart, inserts the order built by place and deletes the
// cart as three sequential writes. A failure after the insert leaves the
// cart in place, so a retry may create a second order.
func (r *OrderRepository) Checkout(ctx context.Context, userID string, place order.PlaceFunc) (*order.Order, error) {
	c, err := getCart(ctx, r.carts, userID)
	switch {
	case errors.Is(err, cart.ErrCartNotFound):
		c = nil
	case err != nil:
		return nil, err
	}

	o, err := place(c)
	if err != nil {
		return nil, err
	}
	if err := r.Create(ctx, o); err != nil {
		return nil, err
	}
	if err := deleteCart(ctx, r.carts, userID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByUser returns the orders of userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.orders.Find(ctx, bson.D{{Key: "userId", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding orders of %q: %w", userID, err)
	}

	orders := make([]order.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].order()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// GetByID returns an order or order.ErrOrderNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var doc orderDocument
	err := r.orders.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := doc.order()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: string(from)}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: string(to)}}}}
	res, err := r.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}
