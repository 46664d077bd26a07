// Package dto holds the JSON bodies of the HTTP API, mirroring the schemas
// of api-contract/openapi.yml.
package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *[]FieldError `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ProductRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock"`
	MinStock      int             `json:"min_stock"`
	Barcode       *string         `json:"barcode"`
	Version       *int64          `json:"version"`
}

type ProductResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PurchasePrice string    `json:"purchase_price"`
	SalePrice     string    `json:"sale_price"`
	Stock         int       `json:"stock"`
	MinStock      int       `json:"min_stock"`
	Barcode       *string   `json:"barcode,omitempty"`
	LowStock      bool      `json:"low_stock"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

type CustomerRequest struct {
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone"`
}

type CustomerResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type OperatorRequest struct {
	FullName string `json:"full_name"`
}

type OperatorResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type CheckoutRequest struct {
	CustomerID *int64         `json:"customer_id"`
	OperatorID int64          `json:"operator_id"`
	Lines      []CheckoutLine `json:"lines"`
}

type CheckoutLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CheckoutResponse struct {
	Sale          SaleResponse    `json:"sale"`
	LowStock      []LowStockAlert `json:"low_stock"`
	LowStockError *string         `json:"low_stock_error,omitempty"`
}

type LowStockAlert struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Stock       int    `json:"stock"`
	MinStock    int    `json:"min_stock"`
}

type SaleResponse struct {
	ID         int64              `json:"id"`
	SoldAt     time.Time          `json:"sold_at"`
	CustomerID *int64             `json:"customer_id,omitempty"`
	OperatorID int64              `json:"operator_id"`
	Total      string             `json:"total"`
	Lines      []SaleLineResponse `json:"lines"`
}

type SaleLineResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}
