package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a committed checkout. It is never mutated after commit.
type Sale struct {
	ID         int64           `json:"id"`
	SoldAt     time.Time       `json:"sold_at"`
	CustomerID *int64          `json:"customer_id,omitempty"`
	OperatorID int64           `json:"operator_id"`
	Lines      []SaleLine      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// SaleLine is one product of a sale. UnitPrice is the sale price captured
// when the line was built, independent of later price changes.
type SaleLine struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// NewSaleLine builds a line and computes its subtotal.
func NewSaleLine(productID int64, productName string, quantity int, unitPrice decimal.Decimal) SaleLine {
	return SaleLine{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumSubtotals returns the sum of the line subtotals.
func SumSubtotals(lines []SaleLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// OrderLine is a line of a supplier purchase order.
type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}
