package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

// DefaultPaymentMethod is used when an order is placed without one.
const DefaultPaymentMethod = "Cash on Delivery"

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusShipped:   1,
	StatusDelivered: 2,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether an order in status s may move to next.
// Statuses only move forward.
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to > from
}

// Source records which entry point created an order. Totals of SourceClient
// orders were supplied by the caller and are not authoritative.
type Source string

const (
	SourceCart   Source = "cart"
	SourceClient Source = "client"
)

// Item is a frozen copy of a cart line.
type Item = cart.Item

// DeliveryInfo is the flat shipping contact of an order.
type DeliveryInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// Order is an immutable snapshot of purchased items. Only Status changes
// after creation.
type Order struct {
	ID            string
	UserID        string
	Items         []Item
	Total         decimal.Decimal
	DeliveryInfo  DeliveryInfo
	PaymentMethod string
	Status        Status
	Source        Source
	CreatedAt     time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// ListByUser returns the orders of userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// GetByID returns ErrOrderNotFound when no order has id.
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus moves order id from status from to status to. It returns
	// ErrOrderNotFound when no order with id is in status from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

// PlaceFunc builds an order from the current cart of a user. The cart is nil
// when the user has none.
type PlaceFunc func(c *cart.Cart) (*Order, error)

// Checkout runs the cart-to-order transition against storage: it loads the
// user's cart, calls place, persists the returned order and deletes the cart.
// Nothing is written when place fails.
type Checkout interface {
	Checkout(ctx context.Context, userID string, place PlaceFunc) (*Order, error)
}

// Publisher announces placed orders to other systems.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// OrderPlaced implements Publisher.
func (NopPublisher) OrderPlaced(context.Context, *Order) error { return nil }
