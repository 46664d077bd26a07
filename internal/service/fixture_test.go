package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/memdb"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
)

const operatorID int64 = 1

type fixture struct {
	store      *memdb.Store
	products   repository.ProductRepository
	sales      repository.SaleRepository
	orderLines repository.OrderLineRepository
	metrics    *service.Metrics
	inventory  service.InventoryService
	saleSvc    service.SaleService
	directory  service.DirectoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memdb.New()
	store.AddOperator(operatorID)

	cfg := config.Inventory{
		TxMaxRetries:     3,
		TxRetryBaseDelay: time.Millisecond,
		TxTimeout:        time.Second,
	}
	logger := slog.New(slog.DiscardHandler)
	metrics := service.NewMetrics(prometheus.NewRegistry())

	products := memdb.NewProductRepository(store)
	sales := memdb.NewSaleRepository(store)
	orderLines := memdb.NewOrderLineRepository(store)
	outboxMsgs := memdb.NewOutboxMsgRepository(store)
	lowStock := service.NewLowStockMonitor(products, metrics)

	return &fixture{
		store:      store,
		products:   products,
		sales:      sales,
		orderLines: orderLines,
		metrics:    metrics,
		inventory: service.NewInventoryService(service.InventoryServiceParams{
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
		}),
		saleSvc: service.NewSaleService(service.SaleServiceParams{
			DB:            store,
			Config:        cfg,
			Logger:        logger,
			Metrics:       metrics,
			LowStock:      lowStock,
			ProductRepo:   products,
			SaleRepo:      sales,
			OutboxMsgRepo: outboxMsgs,
		}),
		directory: service.NewDirectoryService(service.DirectoryServiceParams{
			Logger:       logger,
			Validator:    validator.MustNewDefaultValidator(),
			OperatorRepo: memdb.NewOperatorRepository(store),
			CustomerRepo: memdb.NewCustomerRepository(store),
		}),
	}
}

func (f *fixture) seedProduct(t *testing.T, name string, stock, minStock int, salePrice string) model.Product {
	t.Helper()

	p, err := f.inventory.UpsertProduct(context.Background(), model.Product{
		Name:          name,
		PurchasePrice: decimal.RequireFromString("0.50"),
		SalePrice:     decimal.RequireFromString(salePrice),
		Stock:         stock,
		MinStock:      minStock,
	})
	require.NoError(t, err)

	return p
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()

	p, err := f.products.GetProduct(context.Background(), id)
	require.NoError(t, err)

	return p.Stock
}

// snapshot captures everything a failed operation must leave untouched.
type snapshot struct {
	products []model.Product
	sales    []model.Sale
	outbox   int
}

func (f *fixture) snapshot(t *testing.T) snapshot {
	t.Helper()
	ctx := context.Background()

	products, err := f.products.ListAllProducts(ctx)
	require.NoError(t, err)
	sales, err := f.sales.ListAllSales(ctx)
	require.NoError(t, err)

	return snapshot{products: products, sales: sales, outbox: len(f.store.OutboxMsgs())}
}

func (f *fixture) cartOf(t *testing.T, items ...cartItem) *service.Cart {
	t.Helper()

	cart := service.NewCart()
	for _, it := range items {
		require.NoError(t, cart.AddLine(it.product, it.quantity))
	}

	return cart
}

type cartItem struct {
	product  model.Product
	quantity int
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
