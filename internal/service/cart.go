package service

import (
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
)

// Cart accumulates the lines of a sale before checkout. It belongs to a
// single sale session and is not safe for concurrent use.
//
// Stock checks made by AddLine are against the product snapshot passed in;
// Checkout validates again against the stored stock.
type Cart struct {
	lines []model.SaleLine
	// index maps a product id to its position in lines
	index map[int64]int
}

func NewCart() *Cart {
	return &Cart{index: map[int64]int{}}
}

// AddLine adds quantity units of product. A second addition of the same
// product merges into its line and reprices it at the product's current sale
// price. On error the cart is left unchanged.
func (c *Cart) AddLine(product model.Product, quantity int) error {
	if quantity <= 0 {
		return &apperr.InvalidQuantityError{Quantity: quantity}
	}
	if product.IsNew() {
		return apperr.ProductNotFoundErr.WithMsg("product must be saved before it can be sold")
	}

	if c.index == nil {
		c.index = map[int64]int{}
	}

	i, exists := c.index[product.ID]
	requested := quantity
	if exists {
		requested += c.lines[i].Quantity
	}

	if requested > product.Stock {
		return &apperr.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   requested,
			Available:   product.Stock,
		}
	}

	line := model.NewSaleLine(product.ID, product.Name, requested, product.SalePrice)
	if exists {
		c.lines[i] = line
		return nil
	}

	c.index[product.ID] = len(c.lines)
	c.lines = append(c.lines, line)

	return nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []model.SaleLine {
	items := make([]model.SaleLine, len(c.lines))
	copy(items, c.lines)
	return items
}

// Total is the running total of the line subtotals.
func (c *Cart) Total() decimal.Decimal {
	return model.SumSubtotals(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Clear empties the cart. Call it after a successful checkout.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = map[int64]int{}
}
