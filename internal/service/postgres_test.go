package service_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/ptr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
)

type postgresEnv struct {
	pool       *pgxpool.Pool
	inventory  service.InventoryService
	saleSvc    service.SaleService
	directory  service.DirectoryService
	orderLines repository.OrderLineRepository
	outboxMsgs repository.OutboxMsgRepository
	operator   int64
}

// postgresServices wires the services on the database named by
// POSTGRES_TEST_DSN, skipping the test when it is unset.
func postgresServices(t *testing.T) postgresEnv {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.DiscardHandler)
	require.NoError(t, db.Migrate(ctx, pool, logger))

	client := db.NewClient(pool)
	cfg := config.Inventory{
		TxMaxRetries:     5,
		TxRetryBaseDelay: 5 * time.Millisecond,
		TxTimeout:        5 * time.Second,
	}
	metrics := service.NewMetrics(prometheus.NewRegistry())
	v := validator.MustNewDefaultValidator()

	products := repository.NewProductRepository(client)
	sales := repository.NewSaleRepository(client)
	orderLines := repository.NewOrderLineRepository(client)
	outboxMsgs := repository.NewOutboxMsgRepository(client)
	lowStock := service.NewLowStockMonitor(products, metrics)

	directory := service.NewDirectoryService(service.DirectoryServiceParams{
		Logger:       logger,
		Validator:    v,
		OperatorRepo: repository.NewOperatorRepository(client),
		CustomerRepo: repository.NewCustomerRepository(client),
	})
	operator, err := directory.CreateOperator(ctx, model.Operator{FullName: "test operator"})
	require.NoError(t, err)

	return postgresEnv{
		pool: pool,
		inventory: service.NewInventoryService(service.InventoryServiceParams{
			DB:            client,
			Config:        cfg,
			Logger:        logger,
			Metrics:       metrics,
			Validator:     v,
			LowStock:      lowStock,
			ProductRepo:   products,
			SaleRepo:      sales,
			OrderLineRepo: orderLines,
			OutboxMsgRepo: outboxMsgs,
		}),
		saleSvc: service.NewSaleService(service.SaleServiceParams{
			DB:            client,
			Config:        cfg,
			Logger:        logger,
			Metrics:       metrics,
			LowStock:      lowStock,
			ProductRepo:   products,
			SaleRepo:      sales,
			OutboxMsgRepo: outboxMsgs,
		}),
		directory:  directory,
		orderLines: orderLines,
		outboxMsgs: outboxMsgs,
		operator:   operator.ID,
	}
}

func (e postgresEnv) createProduct(t *testing.T, name string, stock, minStock int) model.Product {
	t.Helper()

	p, err := e.inventory.UpsertProduct(context.Background(), model.Product{
		Name:          name,
		PurchasePrice: dec("0.50"),
		SalePrice:     dec("1.00"),
		Stock:         stock,
		MinStock:      minStock,
	})
	require.NoError(t, err)

	return p
}

func TestPostgresConcurrentCheckoutNeverOversells(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	p := env.createProduct(t, "Concurrent Aspirin", 10, 2)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for range 25 {
		wg.Go(func() {
			cart := service.NewCart()
			if err := cart.AddLine(p, 1); err != nil {
				t.Error(err)
				return
			}

			_, err := env.saleSvc.Checkout(ctx, cart, service.CheckoutParams{OperatorID: env.operator})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Classify(err) == apperr.ClassBusinessRule:
				refused++
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, refused)

	got, err := env.inventory.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestPostgresDeleteProductCascadesSaleLines(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	p, err := env.inventory.UpsertProduct(ctx, model.Product{
		Name:          "Discontinued Syrup",
		PurchasePrice: dec("1.00"),
		SalePrice:     dec("2.00"),
		Stock:         2,
	})
	require.NoError(t, err)

	cart := service.NewCart()
	require.NoError(t, cart.AddLine(p, 2))
	res, err := env.saleSvc.Checkout(ctx, cart, service.CheckoutParams{OperatorID: env.operator})
	require.NoError(t, err)

	require.NoError(t, env.inventory.DeleteProduct(ctx, p.ID))

	_, err = env.inventory.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ProductNotFoundErr)

	sale, err := env.saleSvc.GetSale(ctx, res.Sale.ID)
	require.NoError(t, err)
	assert.Empty(t, sale.Lines)
	assert.True(t, dec("4.00").Equal(sale.Total))
}

func TestPostgresDeleteProductCascadesOrderLines(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	p := env.createProduct(t, "Recalled Drops", 0, 0)

	var orderID int64
	require.NoError(t, env.pool.QueryRow(ctx, `
		WITH supplier AS (
			INSERT INTO suppliers (full_name) VALUES ('test supplier') RETURNING id
		)
		INSERT INTO purchase_orders (supplier_id) SELECT id FROM supplier RETURNING id
	`).Scan(&orderID))

	_, err := env.orderLines.CreateOrderLine(ctx, model.OrderLine{
		OrderID:   orderID,
		ProductID: p.ID,
		Quantity:  12,
		UnitCost:  dec("0.40"),
	})
	require.NoError(t, err)

	require.NoError(t, env.inventory.DeleteProduct(ctx, p.ID))

	lines, err := env.orderLines.ListOrderLinesByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	var orderExists bool
	require.NoError(t, env.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE id = $1)`, orderID).Scan(&orderExists))
	assert.True(t, orderExists)
}

func TestPostgresLowStockStrictBoundary(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	below := env.createProduct(t, "Boundary Below", 4, 5)
	at := env.createProduct(t, "Boundary At", 5, 5)
	unset := env.createProduct(t, "Boundary Unset", 0, 0)

	low, err := env.inventory.LowStock(ctx)
	require.NoError(t, err)

	ids := make([]int64, 0, len(low))
	for _, p := range low {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, below.ID)
	assert.NotContains(t, ids, at.ID)
	assert.NotContains(t, ids, unset.ID)
}

func TestPostgresUpdateRefusesStaleVersion(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	p := env.createProduct(t, "Versioned Balm", 10, 0)
	stale := p

	cart := service.NewCart()
	require.NoError(t, cart.AddLine(p, 6))
	_, err := env.saleSvc.Checkout(ctx, cart, service.CheckoutParams{OperatorID: env.operator})
	require.NoError(t, err)

	stale.SalePrice = dec("1.25")
	_, err = env.inventory.UpsertProduct(ctx, stale)
	require.ErrorIs(t, err, apperr.ProductModifiedErr)

	got, err := env.inventory.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)
	assert.Equal(t, p.Version+1, got.Version)

	got.SalePrice = dec("1.25")
	updated, err := env.inventory.UpsertProduct(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Stock)

	_, err = env.inventory.UpsertProduct(ctx, model.Product{ID: -1, Name: "Ghost", Version: 1})
	require.ErrorIs(t, err, apperr.ProductNotFoundErr)
}

func TestPostgresDirectory(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	c, err := env.directory.CreateCustomer(ctx, model.Customer{FullName: "Postgres Customer", Phone: ptr.New("555-0199")})
	require.NoError(t, err)

	got, err := env.directory.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.FullName, got.FullName)
	assert.Equal(t, c.Phone, got.Phone)

	p := env.createProduct(t, "Directory Tonic", 1, 0)
	cart := service.NewCart()
	require.NoError(t, cart.AddLine(p, 1))
	res, err := env.saleSvc.Checkout(ctx, cart, service.CheckoutParams{OperatorID: env.operator, CustomerID: &c.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Sale.CustomerID)
	assert.Equal(t, c.ID, *res.Sale.CustomerID)

	operators, err := env.directory.ListOperators(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, operators)

	_, err = env.directory.GetOperator(ctx, -1)
	require.ErrorIs(t, err, apperr.OperatorNotFoundErr)
}

func TestPostgresOutboxRetriesFailedMessages(t *testing.T) {
	env := postgresServices(t)
	ctx := context.Background()

	id, err := uuid.NewV7()
	require.NoError(t, err)
	_, err = env.pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, topic, payload, created_at)
		VALUES ($1, 'test.retry', '{}', NOW())
	`, id)
	require.NoError(t, err)

	state := func() (processed bool, attempts int) {
		require.NoError(t, env.pool.QueryRow(ctx,
			`SELECT processed_at IS NOT NULL, attempts FROM outbox_messages WHERE id = $1`, id).
			Scan(&processed, &attempts))
		return processed, attempts
	}
	fail := repository.BulkUpdateOutboxMsgsParams{
		Items:       []repository.BulkUpdateOutboxMsgsItem{{ID: id, Error: ptr.New("broker unavailable")}},
		MaxAttempts: 2,
	}

	require.NoError(t, env.outboxMsgs.BulkUpdateOutboxMsgs(ctx, fail))
	processed, attempts := state()
	assert.False(t, processed)
	assert.Equal(t, 1, attempts)

	require.NoError(t, env.outboxMsgs.BulkUpdateOutboxMsgs(ctx, fail))
	processed, attempts = state()
	assert.True(t, processed)
	assert.Equal(t, 2, attempts)
}
