package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/dto"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
)

type saleHandler struct {
	inventorySvc service.InventoryService
	saleSvc      service.SaleService
	onError      func(w http.ResponseWriter, r *http.Request, err error)
}

func newSaleHandler(
	inventorySvc service.InventoryService,
	saleSvc service.SaleService,
	onError func(w http.ResponseWriter, r *http.Request, err error),
) *saleHandler {
	return &saleHandler{
		inventorySvc: inventorySvc,
		saleSvc:      saleSvc,
		onError:      onError,
	}
}

func (h *saleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.saleSvc.ListSales(r.Context())
	if err != nil {
		h.onError(w, r, fmt.Errorf("sale service list sales: %w", err))
		return
	}

	items := make([]dto.SaleResponse, 0, len(sales))
	for _, sale := range sales {
		items = append(items, toSaleResponse(sale))
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, items)
}

func (h *saleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "saleID")
	if err != nil {
		h.onError(w, r, err)
		return
	}

	sale, err := h.saleSvc.GetSale(r.Context(), id)
	if err != nil {
		h.onError(w, r, fmt.Errorf("sale service get sale: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// Checkout builds a cart from the request lines at current prices and commits
// it as one sale.
func (h *saleHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var body dto.CheckoutRequest
	if err := decodeBody(r, &body); err != nil {
		h.onError(w, r, err)
		return
	}

	cart := service.NewCart()
	for _, line := range body.Lines {
		if line.Quantity <= 0 {
			h.onError(w, r, &apperr.InvalidQuantityError{Quantity: line.Quantity})
			return
		}

		product, err := h.inventorySvc.GetProduct(r.Context(), line.ProductID)
		if errors.Is(err, apperr.ProductNotFoundErr) {
			h.onError(w, r, &apperr.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
			})
			return
		}
		if err != nil {
			h.onError(w, r, fmt.Errorf("inventory service get product: %w", err))
			return
		}

		if err := cart.AddLine(product, line.Quantity); err != nil {
			h.onError(w, r, fmt.Errorf("add cart line: %w", err))
			return
		}
	}

	result, err := h.saleSvc.Checkout(r.Context(), cart, service.CheckoutParams{
		CustomerID: body.CustomerID,
		OperatorID: body.OperatorID,
	})
	if err != nil {
		h.onError(w, r, fmt.Errorf("sale service checkout: %w", err))
		return
	}

	res := dto.CheckoutResponse{
		Sale:     toSaleResponse(result.Sale),
		LowStock: make([]dto.LowStockAlert, 0, len(result.LowStock)),
	}
	for _, alert := range result.LowStock {
		res.LowStock = append(res.LowStock, dto.LowStockAlert(alert))
	}
	if result.LowStockErr != nil {
		msg := result.LowStockErr.Error()
		res.LowStockError = &msg
	}

	//nolint:errcheck
	writeJSON(w, http.StatusCreated, res)
}

func toSaleResponse(sale model.Sale) dto.SaleResponse {
	lines := make([]dto.SaleLineResponse, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, dto.SaleLineResponse{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Subtotal:    line.Subtotal.StringFixed(2),
		})
	}

	return dto.SaleResponse{
		ID:         sale.ID,
		SoldAt:     sale.SoldAt,
		CustomerID: sale.CustomerID,
		OperatorID: sale.OperatorID,
		Total:      sale.Total.StringFixed(2),
		Lines:      lines,
	}
}
