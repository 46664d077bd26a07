package event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicSaleCompleted  = "sale.completed"
	TopicProductDeleted = "product.deleted"
)

// SaleCompletedEvent is published once per committed checkout.
type SaleCompletedEvent struct {
	SaleID     int64               `json:"sale_id"`
	SoldAt     time.Time           `json:"sold_at"`
	CustomerID *int64              `json:"customer_id,omitempty"`
	OperatorID int64               `json:"operator_id"`
	Total      decimal.Decimal     `json:"total"`
	Lines      []SaleCompletedLine `json:"lines"`
}

type SaleCompletedLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ProductDeletedEvent is published when a product and its history are removed.
type ProductDeletedEvent struct {
	ProductID         int64  `json:"product_id"`
	Name              string `json:"name"`
	SaleLinesDeleted  int64  `json:"sale_lines_deleted"`
	OrderLinesDeleted int64  `json:"order_lines_deleted"`
}
