// Package cart models the in-progress shopping cart a customer assembles
// before checkout.
package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a line would end up with fewer than
// one unit.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is a single product entry in the cart. UnitPrice is the catalog price
// captured when the product was added.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Amount returns UnitPrice × Quantity.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds lines in the order they were first added.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts quantity units of a product into the cart. Adding a product that
// is already present increases its quantity and keeps the original price
// snapshot.
func (c *Cart) Add(productID, name string, unitPrice decimal.Decimal, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity += quantity
		return nil
	}
	c.lines = append(c.lines, Line{
		ProductID: productID,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
	})
	return nil
}

// SetQuantity replaces the quantity of an existing line. Setting zero
// removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return errors.Errorf("product %s is not in the cart", productID)
	}
	switch {
	case quantity == 0:
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	case quantity < 0:
		return ErrInvalidQuantity
	default:
		c.lines[i].Quantity = quantity
	}
	return nil
}

// Remove drops a product from the cart. Removing an absent product is a no-op.
func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Quantity returns the total number of units in the cart.
func (c *Cart) Quantity() int {
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// Len returns the number of distinct products.
func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) index(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
