package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
)

// Sentinel errors for order operations.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrEmptyItems     = errors.New("items required")
	ErrUserIDRequired = errors.New("user id required")
	ErrTotalRequired  = errors.New("total required")
	ErrInvalidTotal   = errors.New("total must not be negative")
	ErrOrderNotFound  = errors.New("order not found")
)

// InvalidQuantityError indicates a client-supplied line with a non-positive
// quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidTransitionError indicates a status change that does not move the
// order forward.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %q to %q", e.From, e.To)
}

// PlaceOrderRequest holds the input for placing an order from the user's cart.
type PlaceOrderRequest struct {
	UserID        string
	DeliveryInfo  DeliveryInfo
	PaymentMethod string
}

// ClientOrderRequest holds a fully built order supplied by the caller.
// Items are stored as given. Total is required and is rounded to 2 decimal
// places like every order total.
type ClientOrderRequest struct {
	UserID        string
	Items         []Item
	Total         *decimal.Decimal
	DeliveryInfo  DeliveryInfo
	PaymentMethod string
}

// Options configures optional Service collaborators.
type Options struct {
	Publisher     Publisher
	MeterProvider metric.MeterProvider
}

func (o *Options) setDefaults() {
	if o.Publisher == nil {
		o.Publisher = NopPublisher{}
	}
	if o.MeterProvider == nil {
		o.MeterProvider = noop.NewMeterProvider()
	}
}

// Service encapsulates order placement and history.
type Service struct {
	checkout  Checkout
	orders    Repository
	publisher Publisher
	placed    metric.Int64Counter
	now       func() time.Time
}

// NewService creates an order Service.
func NewService(checkout Checkout, orders Repository, opts Options) (*Service, error) {
	opts.setDefaults()

	meter := opts.MeterProvider.Meter("github.com/xenking/storefront/internal/domain/order")
	placed, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Number of orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}

	return &Service{
		checkout:  checkout,
		orders:    orders,
		publisher: opts.Publisher,
		placed:    placed,
		now:       time.Now,
	}, nil
}

// PlaceOrder turns the user's cart into an order and deletes the cart.
// It fails with ErrEmptyCart when the user has no cart or the cart has no
// lines; no order is created in that case.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUserIDRequired
	}

	o, err := s.checkout.Checkout(ctx, req.UserID, func(c *cart.Cart) (*Order, error) {
		if c.Empty() {
			return nil, ErrEmptyCart
		}
		return s.newOrder(req.UserID, c.Snapshot(), c.Total(), req.DeliveryInfo, req.PaymentMethod, SourceCart), nil
	})
	if err != nil {
		if errors.Is(err, ErrEmptyCart) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "checkout")
	}

	s.afterPlace(ctx, o)
	return o, nil
}

// PlaceClientOrder stores an order whose items and total were assembled by
// the caller. The cart is not read or modified.
func (s *Service) PlaceClientOrder(ctx context.Context, req ClientOrderRequest) (*Order, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Total == nil {
		return nil, ErrTotalRequired
	}
	if req.Total.IsNegative() {
		return nil, ErrInvalidTotal
	}

	items := make([]Item, len(req.Items))
	computed := decimal.Zero
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		items[i] = it
		computed = computed.Add(it.OfferPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	o := s.newOrder(req.UserID, items, *req.Total, req.DeliveryInfo, req.PaymentMethod, SourceClient)
	if !computed.Round(2).Equal(o.Total) {
		zctx.From(ctx).Warn("Client order total differs from item sum",
			zap.String("order_id", o.ID),
			zap.String("asserted", o.Total.StringFixed(2)),
			zap.String("computed", computed.StringFixed(2)),
		)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.afterPlace(ctx, o)
	return o, nil
}

// History returns all orders of a user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// AdvanceStatus moves an order forward in its fulfilment lifecycle.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !o.Status.CanAdvanceTo(to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, o.Status, to); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			// Status changed concurrently.
			return nil, &InvalidTransitionError{From: o.Status, To: to}
		}
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = to
	return o, nil
}

// NewID returns a time-ordered order id. Ids generated later in the same
// process sort after earlier ones, which breaks createdAt ties in history.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *Service) newOrder(
	userID string,
	items []Item,
	total decimal.Decimal,
	delivery DeliveryInfo,
	payment string,
	source Source,
) *Order {
	if strings.TrimSpace(payment) == "" {
		payment = DefaultPaymentMethod
	}
	return &Order{
		ID:            NewID(),
		UserID:        userID,
		Items:         items,
		Total:         total.Round(2),
		DeliveryInfo:  delivery,
		PaymentMethod: payment,
		Status:        StatusPending,
		Source:        source,
		CreatedAt:     s.now().UTC(),
	}
}

func (s *Service) afterPlace(ctx context.Context, o *Order) {
	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(o.Source))))

	if err := s.publisher.OrderPlaced(ctx, o); err != nil {
		zctx.From(ctx).Error("Publish order placed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
