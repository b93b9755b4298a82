// Package cart implements the per-user shopping cart aggregate.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single cart line. Name and OfferPrice are copied from the
// catalog when the line is first added and are not refreshed afterwards.
type Item struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	OfferPrice decimal.Decimal `json:"offerPrice"`
	Quantity   int             `json:"quantity"`
}

// Cart is the mutable line-item collection of one user.
// Items are unique by ProductID.
type Cart struct {
	UserID    string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an empty cart for userID.
func New(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Add puts one unit of productID into the cart. An existing line is
// incremented by one and keeps its original name and price.
func (c *Cart) Add(productID, name string, price decimal.Decimal) Item {
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity++
		return c.Items[i]
	}
	it := Item{
		ProductID:  productID,
		Name:       name,
		OfferPrice: price,
		Quantity:   1,
	}
	c.Items = append(c.Items, it)
	return it
}

// SetQuantity overwrites the quantity of an existing line.
func (c *Cart) SetQuantity(productID string, qty int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = qty
	return nil
}

// Remove drops the line for productID and reports whether one existed.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// Total returns the sum of OfferPrice * Quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.OfferPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Snapshot returns a copy of the lines that shares no memory with the cart.
func (c *Cart) Snapshot() []Item {
	out := make([]Item, len(c.Items))
	copy(out, c.Items)
	return out
}

// ProductIDs returns the product ids of all lines in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	return ids
}

func (c *Cart) index(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Repository defines persistence operations for carts. There is at most one
// cart per user.
type Repository interface {
	// Get returns ErrCartNotFound when the user has no cart.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Save creates or replaces the cart of c.UserID.
	Save(ctx context.Context, c *Cart) error
	// Delete removes the cart of userID. Deleting a missing cart is not an error.
	Delete(ctx context.Context, userID string) error
}
