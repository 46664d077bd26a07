package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item together with its current stock level.
//
// ID is zero until the product is first persisted. Version is bumped by
// every write; an update carrying an older version is refused.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=2000"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"dec_gte0,dec_scale=2"`
	SalePrice     decimal.Decimal `json:"sale_price" validate:"dec_gte0,dec_scale=2"`
	Stock         int             `json:"stock" validate:"gte=0,lte=2147483647"`
	MinStock      int             `json:"min_stock" validate:"gte=0,lte=2147483647"`
	Barcode       *string         `json:"barcode,omitempty" validate:"omitempty,min=1,max=64"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
}

// IsNew reports whether the product has not been persisted yet.
func (p Product) IsNew() bool {
	return p.ID == 0
}

// IsStockLow reports whether the stock is strictly below the minimum threshold.
func (p Product) IsStockLow() bool {
	return p.Stock < p.MinStock
}

// LowStockAlert is the advisory pair reported after a checkout.
type LowStockAlert struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Stock       int    `json:"stock"`
	MinStock    int    `json:"min_stock"`
}

// NewLowStockAlerts converts low-stock products to alerts.
func NewLowStockAlerts(products []Product) []LowStockAlert {
	alerts := make([]LowStockAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, LowStockAlert{
			ProductID:   p.ID,
			ProductName: p.Name,
			Stock:       p.Stock,
			MinStock:    p.MinStock,
		})
	}
	return alerts
}
