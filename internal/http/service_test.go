package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	pihttp "github.com/tuanvumaihuynh/pharmacy-inventory/internal/http"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/dto"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/memdb"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/correlationid"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
)

const operatorID int64 = 1

func newTestHandler(t *testing.T, requestValidation bool) http.Handler {
	t.Helper()

	store := memdb.New()
	store.AddOperator(operatorID)

	cfg := config.Inventory{
		TxMaxRetries:     3,
		TxRetryBaseDelay: time.Millisecond,
		TxTimeout:        time.Second,
	}
	logger := slog.New(slog.DiscardHandler)
	registry := prometheus.NewRegistry()
	metrics := service.NewMetrics(registry)

	products := memdb.NewProductRepository(store)
	sales := memdb.NewSaleRepository(store)
	orderLines := memdb.NewOrderLineRepository(store)
	outboxMsgs := memdb.NewOutboxMsgRepository(store)
	lowStock := service.NewLowStockMonitor(products, metrics)

	inventory := service.NewInventoryService(service.InventoryServiceParams{
		DB:            store,
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		Validator:     validator.MustNewDefaultValidator(),
		LowStock:      lowStock,
		ProductRepo:   products,
		SaleRepo:      sales,
		OrderLineRepo: orderLines,
		OutboxMsgRepo: outboxMsgs,
	})
	saleSvc := service.NewSaleService(service.SaleServiceParams{
		DB:            store,
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		LowStock:      lowStock,
		ProductRepo:   products,
		SaleRepo:      sales,
		OutboxMsgRepo: outboxMsgs,
	})

	directory := service.NewDirectoryService(service.DirectoryServiceParams{
		Logger:       logger,
		Validator:    validator.MustNewDefaultValidator(),
		OperatorRepo: memdb.NewOperatorRepository(store),
		CustomerRepo: memdb.NewCustomerRepository(store),
	})

	srv := pihttp.New(config.HTTP{Swagger: true, RequestValidation: requestValidation},
		logger, registry, inventory, saleSvc, directory)

	h, err := srv.Handler(context.Background())
	require.NoError(t, err)

	return h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func createProduct(t *testing.T, h http.Handler, name string, stock, minStock int, salePrice string) dto.ProductResponse {
	t.Helper()

	resp := do(t, h, http.MethodPost, "/products", map[string]any{
		"name":           name,
		"purchase_price": "0.50",
		"sale_price":     salePrice,
		"stock":          stock,
		"min_stock":      minStock,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	return decode[dto.ProductResponse](t, resp)
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

func TestProductRoutes(t *testing.T) {
	h := newTestHandler(t, true)

	aspirin := createProduct(t, h, "Aspirin", 3, 5, "2.5")
	assert.Equal(t, "2.50", aspirin.SalePrice)
	assert.True(t, aspirin.LowStock)

	t.Run("Should get product by id", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, productPath(aspirin.ID), nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "Aspirin", decode[dto.ProductResponse](t, resp).Name)
	})

	t.Run("Should list low stock products", func(t *testing.T) {
		createProduct(t, h, "Ibuprofen", 50, 5, "4.00")

		resp := do(t, h, http.MethodGet, "/products/low-stock", nil)
		require.Equal(t, http.StatusOK, resp.Code)

		items := decode[[]dto.ProductResponse](t, resp)
		require.Len(t, items, 1)
		assert.Equal(t, aspirin.ID, items[0].ID)
	})

	t.Run("Should return 404 for unknown product", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, productPath(999), nil)
		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "PRODUCT_NOT_FOUND", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should reject a body that breaks the contract", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/products", map[string]any{
			"name":           "Broken",
			"purchase_price": "1.00",
			"sale_price":     "-1",
			"stock":          1,
			"min_stock":      0,
		})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION_FAILED", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should reject a non numeric id", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, "/products/abc", nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestProductValidationWithoutContract(t *testing.T) {
	h := newTestHandler(t, false)

	resp := do(t, h, http.MethodPost, "/products", map[string]any{
		"name":           "",
		"purchase_price": "1.005",
		"sale_price":     "1.00",
		"stock":          1,
		"min_stock":      0,
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	res := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "INVALID_PRODUCT", res.Code)
	require.NotNil(t, res.Details)

	fields := make([]string, 0, len(*res.Details))
	for _, d := range *res.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"name", "purchase_price"}, fields)

	t.Run("Should reject a non numeric id", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, "/products/abc", nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestCheckoutRoute(t *testing.T) {
	h := newTestHandler(t, true)

	paracetamol := createProduct(t, h, "Paracetamol", 10, 2, "0.10")
	ibuprofen := createProduct(t, h, "Ibuprofen", 3, 2, "0.20")

	t.Run("Should commit the sale and report low stock", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": operatorID,
			"lines": []map[string]any{
				{"product_id": paracetamol.ID, "quantity": 3},
				{"product_id": ibuprofen.ID, "quantity": 2},
			},
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		res := decode[dto.CheckoutResponse](t, resp)
		assert.Equal(t, "0.70", res.Sale.Total)
		require.Len(t, res.Sale.Lines, 2)
		assert.Nil(t, res.LowStockError)
		require.Len(t, res.LowStock, 1)
		assert.Equal(t, ibuprofen.ID, res.LowStock[0].ProductID)
		assert.Equal(t, 1, res.LowStock[0].Stock)

		got := do(t, h, http.MethodGet, "/sales/"+strconv.FormatInt(res.Sale.ID, 10), nil)
		require.Equal(t, http.StatusOK, got.Code)
		assert.Equal(t, "0.70", decode[dto.SaleResponse](t, got).Total)
	})

	t.Run("Should refuse a quantity above stock and keep stock unchanged", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": operatorID,
			"lines": []map[string]any{
				{"product_id": paracetamol.ID, "quantity": 1},
				{"product_id": ibuprofen.ID, "quantity": 5},
			},
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", decode[dto.ErrorResponse](t, resp).Code)

		got := decode[dto.ProductResponse](t, do(t, h, http.MethodGet, productPath(paracetamol.ID), nil))
		assert.Equal(t, 7, got.Stock)
	})

	t.Run("Should refuse an unknown product as out of stock", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": operatorID,
			"lines":       []map[string]any{{"product_id": 999, "quantity": 1}},
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should refuse an empty cart", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": operatorID,
			"lines":       []map[string]any{},
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Equal(t, "EMPTY_CART", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should refuse a non positive quantity", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": operatorID,
			"lines":       []map[string]any{{"product_id": paracetamol.ID, "quantity": 0}},
		})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "INVALID_QUANTITY", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should map an unknown operator to a conflict", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": 42,
			"lines":       []map[string]any{{"product_id": paracetamol.ID, "quantity": 1}},
		})
		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "REFERENTIAL_CONSTRAINT", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should list sales", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, "/sales", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decode[[]dto.SaleResponse](t, resp), 1)
	})
}

func TestDeleteProductRoute(t *testing.T) {
	h := newTestHandler(t, true)

	p := createProduct(t, h, "Aspirin", 7, 1, "1.00")

	resp := do(t, h, http.MethodDelete, productPath(p.ID), nil)
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "STOCK_REMAINING", decode[dto.ErrorResponse](t, resp).Code)

	resp = do(t, h, http.MethodPut, productPath(p.ID), map[string]any{
		"name":           "Aspirin",
		"purchase_price": "0.50",
		"sale_price":     "1.00",
		"stock":          0,
		"min_stock":      1,
		"version":        p.Version,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = do(t, h, http.MethodDelete, productPath(p.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(t, h, http.MethodGet, productPath(p.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	t.Run("Should treat deleting a missing product as done", func(t *testing.T) {
		resp := do(t, h, http.MethodDelete, productPath(p.ID), nil)
		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("Should not create a product on update of an unknown id", func(t *testing.T) {
		resp := do(t, h, http.MethodPut, productPath(999), map[string]any{
			"name":           "Ghost",
			"purchase_price": "0.50",
			"sale_price":     "1.00",
			"stock":          1,
			"min_stock":      0,
			"version":        1,
		})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestUpdateProductRoute_Version(t *testing.T) {
	h := newTestHandler(t, true)

	p := createProduct(t, h, "Aspirin", 10, 2, "2.50")
	assert.Equal(t, int64(1), p.Version)

	edit := func(version any) *httptest.ResponseRecorder {
		body := map[string]any{
			"name":           "Aspirin",
			"purchase_price": "0.50",
			"sale_price":     "2.75",
			"stock":          10,
			"min_stock":      2,
		}
		if version != nil {
			body["version"] = version
		}
		return do(t, h, http.MethodPut, productPath(p.ID), body)
	}

	t.Run("Should refuse an edit read before a checkout", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": operatorID,
			"lines":       []map[string]any{{"product_id": p.ID, "quantity": 6}},
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		resp = edit(p.Version)
		require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
		assert.Equal(t, "PRODUCT_MODIFIED", decode[dto.ErrorResponse](t, resp).Code)

		got := decode[dto.ProductResponse](t, do(t, h, http.MethodGet, productPath(p.ID), nil))
		assert.Equal(t, 4, got.Stock)
		assert.Equal(t, "2.50", got.SalePrice)
	})

	t.Run("Should accept an edit carrying the current version", func(t *testing.T) {
		current := decode[dto.ProductResponse](t, do(t, h, http.MethodGet, productPath(p.ID), nil))

		resp := edit(current.Version)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		updated := decode[dto.ProductResponse](t, resp)
		assert.Equal(t, current.Version+1, updated.Version)
		assert.Equal(t, "2.75", updated.SalePrice)
	})

	t.Run("Should require a version", func(t *testing.T) {
		resp := edit(nil)
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION_FAILED", decode[dto.ErrorResponse](t, resp).Code)
	})
}

func TestDirectoryRoutes(t *testing.T) {
	h := newTestHandler(t, true)

	t.Run("Should check out with an operator created through the API", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/operators", map[string]any{"full_name": "Ana Lima"})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		op := decode[dto.OperatorResponse](t, resp)
		assert.Equal(t, "Ana Lima", op.FullName)

		resp = do(t, h, http.MethodPost, "/customers", map[string]any{"full_name": "Bruno", "phone": "555-0100"})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		customer := decode[dto.CustomerResponse](t, resp)

		p := createProduct(t, h, "Aspirin", 5, 0, "2.50")
		resp = do(t, h, http.MethodPost, "/sales", map[string]any{
			"operator_id": op.ID,
			"customer_id": customer.ID,
			"lines":       []map[string]any{{"product_id": p.ID, "quantity": 1}},
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		sale := decode[dto.CheckoutResponse](t, resp).Sale
		assert.Equal(t, op.ID, sale.OperatorID)
		require.NotNil(t, sale.CustomerID)
		assert.Equal(t, customer.ID, *sale.CustomerID)

		resp = do(t, h, http.MethodGet, "/operators/"+strconv.FormatInt(op.ID, 10), nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, op, decode[dto.OperatorResponse](t, resp))
	})

	t.Run("Should list operators and customers", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, "/operators", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decode[[]dto.OperatorResponse](t, resp), 2)

		resp = do(t, h, http.MethodGet, "/customers", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		customers := decode[[]dto.CustomerResponse](t, resp)
		require.Len(t, customers, 1)
		assert.Equal(t, "Bruno", customers[0].FullName)
	})

	t.Run("Should return 404 for an unknown customer", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, "/customers/999", nil)
		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "CUSTOMER_NOT_FOUND", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("Should reject an operator without a name", func(t *testing.T) {
		resp := do(t, h, http.MethodPost, "/operators", map[string]any{"full_name": ""})
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestAmbientRoutes(t *testing.T) {
	h := newTestHandler(t, true)

	t.Run("Should echo the correlation id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set(correlationid.Header, "abc-123")
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "abc-123", resp.Header().Get(correlationid.Header))
	})

	t.Run("Should generate a correlation id", func(t *testing.T) {
		resp := do(t, h, http.MethodGet, "/products", nil)
		assert.NotEmpty(t, resp.Header().Get(correlationid.Header))
	})

	t.Run("Should expose metrics by route pattern", func(t *testing.T) {
		do(t, h, http.MethodGet, productPath(12345), nil)

		resp := do(t, h, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "pharmacy_inventory_http_requests_total")
		assert.Contains(t, resp.Body.String(), `route="/products/{productID}"`)
		assert.NotContains(t, resp.Body.String(), "/products/12345")
	})
}
