package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/event"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
)

var checkoutParams = service.CheckoutParams{OperatorID: operatorID}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)

	for _, cart := range []*service.Cart{nil, service.NewCart()} {
		_, err := f.saleSvc.Checkout(context.Background(), cart, checkoutParams)

		var emptyErr *apperr.EmptyCartError
		require.ErrorAs(t, err, &emptyErr)
		assert.Equal(t, apperr.ClassValidation, apperr.Classify(err))
	}

	assert.Equal(t, before, f.snapshot(t))
}

func TestCheckout_StockAboveThresholdIsNotReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Paracetamol", 10, 5, "1.20")

	cart := f.cartOf(t, cartItem{p, 4})
	items := cart.Items()
	require.Len(t, items, 1)
	assert.True(t, dec("4.80").Equal(items[0].Subtotal))

	result, err := f.saleSvc.Checkout(ctx, cart, checkoutParams)
	require.NoError(t, err)

	assert.Equal(t, 6, f.stock(t, p.ID))
	assert.Empty(t, result.LowStock)
	assert.NoError(t, result.LowStockErr)

	low, err := f.inventory.LowStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, low)
}

func TestCheckout_StockBelowThresholdIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Paracetamol", 10, 5, "1.20")

	result, err := f.saleSvc.Checkout(ctx, f.cartOf(t, cartItem{p, 6}), checkoutParams)
	require.NoError(t, err)

	assert.Equal(t, 4, f.stock(t, p.ID))
	assert.Equal(t, []model.LowStockAlert{{
		ProductID:   p.ID,
		ProductName: "Paracetamol",
		Stock:       4,
		MinStock:    5,
	}}, result.LowStock)

	low, err := f.inventory.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LowStockProduct))
}

func TestCheckout_PersistsSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.AddCustomer(9)
	a := f.seedProduct(t, "Aspirin", 10, 0, "2.50")
	b := f.seedProduct(t, "Ibuprofen", 10, 0, "4.00")

	customerID := int64(9)
	result, err := f.saleSvc.Checkout(ctx,
		f.cartOf(t, cartItem{a, 2}, cartItem{b, 1}, cartItem{a, 1}),
		service.CheckoutParams{CustomerID: &customerID, OperatorID: operatorID},
	)
	require.NoError(t, err)

	sale := result.Sale
	assert.NotZero(t, sale.ID)
	assert.False(t, sale.SoldAt.IsZero())
	assert.Equal(t, &customerID, sale.CustomerID)
	assert.True(t, dec("11.50").Equal(sale.Total), sale.Total.String())
	require.Len(t, sale.Lines, 2)
	assert.Equal(t, a.ID, sale.Lines[0].ProductID)
	assert.Equal(t, 3, sale.Lines[0].Quantity)
	assert.Equal(t, 7, f.stock(t, a.ID))
	assert.Equal(t, 9, f.stock(t, b.ID))

	stored, err := f.saleSvc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(stored.Total))
	assert.Len(t, stored.Lines, 2)

	msgs := f.store.OutboxMsgs()
	require.Len(t, msgs, 1)
	assert.Equal(t, event.TopicSaleCompleted, msgs[0].Topic)

	var ev event.SaleCompletedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ev))
	assert.Equal(t, sale.ID, ev.SaleID)
	assert.Len(t, ev.Lines, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues("success")))
}

func TestCheckout_RevalidatesStockAtomically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.seedProduct(t, "Aspirin", 10, 0, "2.50")
	b := f.seedProduct(t, "Ibuprofen", 5, 0, "4.00")

	// The cart was built against a snapshot; b has since been sold down.
	cart := f.cartOf(t, cartItem{a, 3}, cartItem{b, 4})
	b.Stock = 2
	_, err := f.products.UpdateProduct(ctx, b)
	require.NoError(t, err)

	before := f.snapshot(t)
	_, err = f.saleSvc.Checkout(ctx, cart, checkoutParams)

	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, "Ibuprofen", stockErr.ProductName)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, apperr.ClassBusinessRule, apperr.Classify(err))

	assert.Equal(t, before, f.snapshot(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues("refused")))
}

func TestCheckout_DeletedProductIsInsufficient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 0, 0, "2.50")
	cart := service.NewCart()
	require.NoError(t, cart.AddLine(model.Product{ID: p.ID, Name: p.Name, SalePrice: p.SalePrice, Stock: 1}, 1))
	require.NoError(t, f.inventory.DeleteProduct(ctx, p.ID))

	_, err := f.saleSvc.Checkout(ctx, cart, checkoutParams)

	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestCheckout_RollsBackOnFailure(t *testing.T) {
	boom := errors.New("connection reset by peer")

	for _, op := range []string{"CreateSale", "UpdateProduct", "CreateOutboxMsg"} {
		t.Run(op, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			a := f.seedProduct(t, "Aspirin", 10, 0, "2.50")
			b := f.seedProduct(t, "Ibuprofen", 10, 0, "4.00")
			cart := f.cartOf(t, cartItem{a, 1}, cartItem{b, 1})
			before := f.snapshot(t)

			f.store.FailOn(op, boom, 0)
			_, err := f.saleSvc.Checkout(ctx, cart, checkoutParams)
			f.store.ClearFaults()

			var txErr *apperr.TransactionError
			require.ErrorAs(t, err, &txErr)
			assert.Equal(t, "checkout", txErr.Op)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, apperr.ClassFatal, apperr.Classify(err))

			assert.Equal(t, before, f.snapshot(t))
		})
	}
}

func TestCheckout_RetriesSerializationFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 10, 0, "2.50")

	f.store.FailOn("GetProductsForUpdate", &pgconn.PgError{Code: "40001"}, 2)
	_, err := f.saleSvc.Checkout(ctx, f.cartOf(t, cartItem{p, 1}), checkoutParams)
	require.NoError(t, err)

	assert.Equal(t, 9, f.stock(t, p.ID))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.TxRetries.WithLabelValues("checkout")))
}

func TestCheckout_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 10, 0, "2.50")
	deadlock := &pgconn.PgError{Code: "40P01"}

	f.store.FailOn("CreateSale", deadlock, 0)
	_, err := f.saleSvc.Checkout(ctx, f.cartOf(t, cartItem{p, 1}), checkoutParams)

	var txErr *apperr.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.ErrorIs(t, err, deadlock)
	assert.Equal(t, 10, f.stock(t, p.ID))
}

func TestCheckout_CanceledContextCommitsNothing(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 10, 0, "2.50")
	cart := f.cartOf(t, cartItem{p, 1})
	before := f.snapshot(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.saleSvc.Checkout(ctx, cart, checkoutParams)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, f.snapshot(t))
}

func TestCheckout_UnknownOperatorIsReferentialError(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 10, 0, "2.50")

	_, err := f.saleSvc.Checkout(context.Background(), f.cartOf(t, cartItem{p, 1}),
		service.CheckoutParams{OperatorID: 404})

	var refErr *apperr.ReferentialConstraintError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "sales_operator_id_fkey", refErr.Constraint)
	assert.NotErrorIs(t, err, apperr.TransactionErr)
	assert.Equal(t, 10, f.stock(t, p.ID))
}

func TestCheckout_LowStockFailureKeepsSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 10, 5, "2.50")
	boom := errors.New("read timeout")

	f.store.FailOn("ListLowStockProducts", boom, 1)
	result, err := f.saleSvc.Checkout(ctx, f.cartOf(t, cartItem{p, 6}), checkoutParams)
	require.NoError(t, err)

	assert.NotZero(t, result.Sale.ID)
	assert.ErrorIs(t, result.LowStockErr, boom)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestCheckout_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Paracetamol", 10, 5, "1.20")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		refusals int
	)
	for range 2 {
		cart := f.cartOf(t, cartItem{p, 6})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.saleSvc.Checkout(ctx, cart, checkoutParams)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, apperr.InsufficientStockErr):
				refusals++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, refusals)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestCheckout_ManyConcurrentSingleUnitCheckouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Paracetamol", 10, 0, "1.20")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range 25 {
		cart := f.cartOf(t, cartItem{p, 1})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.saleSvc.Checkout(ctx, cart, checkoutParams); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, success)
	assert.Equal(t, 0, f.stock(t, p.ID))

	sales, err := f.saleSvc.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 10)
}

func TestCheckout_PriceFreeze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Aspirin", 10, 0, "2.50")

	result, err := f.saleSvc.Checkout(ctx, f.cartOf(t, cartItem{p, 2}), checkoutParams)
	require.NoError(t, err)

	p, err = f.inventory.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	p.SalePrice = dec("9.99")
	_, err = f.inventory.UpsertProduct(ctx, p)
	require.NoError(t, err)

	sale, err := f.saleSvc.GetSale(ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(sale.Total), sale.Total.String())
	require.Len(t, sale.Lines, 1)
	assert.True(t, dec("2.50").Equal(sale.Lines[0].UnitPrice))
	assert.True(t, dec("5.00").Equal(sale.Lines[0].Subtotal))
}

func TestGetSale_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.saleSvc.GetSale(context.Background(), 12345)
	assert.ErrorIs(t, err, apperr.SaleNotFoundErr)
}
