package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrUserIDRequired    = errors.New("user id required")
	ErrProductIDRequired = errors.New("product id required")
	ErrInvalidPrice      = errors.New("offer price must not be negative")
)

// InvalidQuantityError indicates a quantity update below one.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s, got %d", e.ProductID, e.Quantity)
}

// ProductLookup resolves product ids to catalog records.
type ProductLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// ResolvedItem is a cart line joined with its catalog product. Product is nil
// when the product has been removed from the catalog.
type ResolvedItem struct {
	Item
	Product *product.Product
}

// View is the read model returned by Fetch.
type View struct {
	UserID    string
	Items     []ResolvedItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddItemRequest holds the input for adding a product to a cart.
type AddItemRequest struct {
	UserID     string
	ProductID  string
	Name       string
	OfferPrice decimal.Decimal
}

// UpdateQuantityRequest holds the input for setting a line quantity.
type UpdateQuantityRequest struct {
	UserID    string
	ProductID string
	Quantity  int
}

// Service encapsulates cart business logic.
type Service struct {
	carts    Repository
	products ProductLookup
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products ProductLookup) *Service {
	return &Service{
		carts:    carts,
		products: products,
		now:      time.Now,
	}
}

// Fetch returns the user's cart with products resolved. A user without a
// cart gets an empty view.
func (s *Service) Fetch(ctx context.Context, userID string) (*View, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	c, err := s.carts.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return &View{UserID: userID, Items: []ResolvedItem{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	view := &View{
		UserID:    c.UserID,
		Items:     make([]ResolvedItem, len(c.Items)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if len(c.Items) == 0 {
		return view, nil
	}

	fetched, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}
	for i, it := range c.Items {
		view.Items[i] = ResolvedItem{Item: it, Product: byID[it.ProductID]}
	}
	return view, nil
}

// AddItem adds one unit of a product, creating the cart on first use.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (*Cart, error) {
	if err := validateIDs(req.UserID, req.ProductID); err != nil {
		return nil, err
	}
	if req.OfferPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}

	now := s.now().UTC()
	c, err := s.carts.Get(ctx, req.UserID)
	switch {
	case errors.Is(err, ErrCartNotFound):
		c = New(req.UserID, now)
	case err != nil:
		return nil, errors.Wrap(err, "get cart")
	}

	c.Add(req.ProductID, req.Name, req.OfferPrice)
	return s.save(ctx, c, now)
}

// UpdateQuantity sets the quantity of an existing line.
func (s *Service) UpdateQuantity(ctx context.Context, req UpdateQuantityRequest) (*Cart, error) {
	if err := validateIDs(req.UserID, req.ProductID); err != nil {
		return nil, err
	}
	if req.Quantity < 1 {
		return nil, &InvalidQuantityError{ProductID: req.ProductID, Quantity: req.Quantity}
	}

	c, err := s.load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(req.ProductID, req.Quantity); err != nil {
		return nil, err
	}
	return s.save(ctx, c, s.now().UTC())
}

// RemoveItem drops a line. Removing a product that is not in the cart
// returns the cart unchanged.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.Remove(productID) {
		return c, nil
	}
	return s.save(ctx, c, s.now().UTC())
}

// Clear deletes the user's cart. It succeeds when there is no cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	if err := s.carts.Delete(ctx, userID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *Cart, now time.Time) (*Cart, error) {
	c.UpdatedAt = now
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

func validateIDs(userID, productID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(productID) == "" {
		return ErrProductIDRequired
	}
	return nil
}
