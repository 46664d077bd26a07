package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/apierr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/dto"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/ptr"
)

type productHandler struct {
	inventorySvc service.InventoryService
	onError      func(w http.ResponseWriter, r *http.Request, err error)
}

func newProductHandler(
	inventorySvc service.InventoryService,
	onError func(w http.ResponseWriter, r *http.Request, err error),
) *productHandler {
	return &productHandler{
		inventorySvc: inventorySvc,
		onError:      onError,
	}
}

func (h *productHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventorySvc.ListProducts(r.Context())
	if err != nil {
		h.onError(w, r, fmt.Errorf("inventory service list products: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *productHandler) ListLowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventorySvc.LowStock(r.Context())
	if err != nil {
		h.onError(w, r, fmt.Errorf("inventory service low stock: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *productHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		h.onError(w, r, err)
		return
	}

	product, err := h.inventorySvc.GetProduct(r.Context(), id)
	if err != nil {
		h.onError(w, r, fmt.Errorf("inventory service get product: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) GetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	var barcode string
	err := runtime.BindStyledParameterWithOptions("simple", "barcode", chi.URLParam(r, "barcode"), &barcode,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		h.onError(w, r, &apierr.InvalidParamError{Name: "barcode", Err: err})
		return
	}

	product, err := h.inventorySvc.FindProductByBarcode(r.Context(), barcode)
	if err != nil {
		h.onError(w, r, fmt.Errorf("inventory service find product by barcode: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var body dto.ProductRequest
	if err := decodeBody(r, &body); err != nil {
		h.onError(w, r, err)
		return
	}

	product, err := h.inventorySvc.UpsertProduct(r.Context(), fromProductRequest(0, body))
	if err != nil {
		h.onError(w, r, fmt.Errorf("inventory service upsert product: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *productHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		h.onError(w, r, err)
		return
	}

	var body dto.ProductRequest
	if err := decodeBody(r, &body); err != nil {
		h.onError(w, r, err)
		return
	}

	if body.Version == nil {
		h.onError(w, r, apperr.ValidationErr.WithMsg("version is required to update a product"))
		return
	}

	product, err := h.inventorySvc.UpsertProduct(r.Context(), fromProductRequest(id, body))
	if err != nil {
		h.onError(w, r, fmt.Errorf("inventory service upsert product: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		h.onError(w, r, err)
		return
	}

	if err := h.inventorySvc.DeleteProduct(r.Context(), id); err != nil {
		h.onError(w, r, fmt.Errorf("inventory service delete product: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return 0, &apierr.InvalidParamError{Name: name, Err: err}
	}
	if id <= 0 {
		return 0, &apierr.InvalidParamError{Name: name, Err: fmt.Errorf("must be positive, got %d", id)}
	}

	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.ValidationErr.WithMsg(fmt.Sprintf("invalid request body: %v", err)).WrapParent(err)
	}

	return nil
}

func fromProductRequest(id int64, body dto.ProductRequest) model.Product {
	return model.Product{
		ID:            id,
		Name:          body.Name,
		Description:   body.Description,
		PurchasePrice: body.PurchasePrice,
		SalePrice:     body.SalePrice,
		Stock:         body.Stock,
		MinStock:      body.MinStock,
		Barcode:       body.Barcode,
		Version:       ptr.Deref(body.Version),
	}
}

func toProductResponse(p model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		PurchasePrice: p.PurchasePrice.StringFixed(2),
		SalePrice:     p.SalePrice.StringFixed(2),
		Stock:         p.Stock,
		MinStock:      p.MinStock,
		Barcode:       p.Barcode,
		LowStock:      p.IsStockLow(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}

func toProductResponses(products []model.Product) []dto.ProductResponse {
	items := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProductResponse(p))
	}
	return items
}
