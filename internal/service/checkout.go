package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/event"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

const opCheckout = "checkout"

type CheckoutParams struct {
	CustomerID *int64
	OperatorID int64
}

type CheckoutResult struct {
	Sale model.Sale
	// LowStock lists every product below its minimum stock right after the
	// commit.
	LowStock []model.LowStockAlert
	// LowStockErr is set when the low-stock evaluation failed. The sale is
	// committed regardless.
	LowStockErr error
}

// SaleService records sales and reads the sales history.
type SaleService interface {
	// Checkout persists the cart as one sale and decrements the stock of every
	// product in it, all or nothing. The caller clears the cart on success.
	Checkout(ctx context.Context, cart *Cart, params CheckoutParams) (CheckoutResult, error)
	GetSale(ctx context.Context, id int64) (model.Sale, error)
	ListSales(ctx context.Context) ([]model.Sale, error)
}

type saleService struct {
	tx            txRunner
	logger        *slog.Logger
	metrics       *Metrics
	now           func() time.Time
	lowStock      LowStockMonitor
	productRepo   repository.ProductRepository
	saleRepo      repository.SaleRepository
	outboxMsgRepo repository.OutboxMsgRepository
}

type SaleServiceParams struct {
	DB            db.DB
	Config        config.Inventory
	Logger        *slog.Logger
	Metrics       *Metrics
	LowStock      LowStockMonitor
	ProductRepo   repository.ProductRepository
	SaleRepo      repository.SaleRepository
	OutboxMsgRepo repository.OutboxMsgRepository
}

func NewSaleService(p SaleServiceParams) SaleService {
	logger := p.Logger.With(slog.String("service", "sale"))

	return &saleService{
		tx: txRunner{
			db:      p.DB,
			cfg:     p.Config,
			metrics: p.Metrics,
			logger:  logger,
		},
		logger:        logger,
		metrics:       p.Metrics,
		now:           time.Now,
		lowStock:      p.LowStock,
		productRepo:   p.ProductRepo,
		saleRepo:      p.SaleRepo,
		outboxMsgRepo: p.OutboxMsgRepo,
	}
}

func (s *saleService) Checkout(ctx context.Context, cart *Cart, params CheckoutParams) (result CheckoutResult, err error) {
	ctx, span := tracer.Start(ctx, "SaleService.Checkout",
		trace.WithAttributes(attribute.Int64("operator.id", params.OperatorID)))
	defer func() {
		s.metrics.Checkouts.WithLabelValues(outcomeOf(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if cart == nil || cart.IsEmpty() {
		return CheckoutResult{}, &apperr.EmptyCartError{}
	}

	lines := cart.Items()
	span.SetAttributes(attribute.Int("sale.lines", len(lines)))

	var sale model.Sale
	err = s.tx.run(ctx, opCheckout, func(ctx context.Context, tx db.DB) error {
		var err error
		sale, err = s.checkoutTx(ctx, tx, lines, params)
		return err
	})
	if err != nil {
		var stockErr *apperr.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.logger.InfoContext(ctx, "checkout refused",
				slog.Int64("product_id", stockErr.ProductID),
				slog.Int("requested", stockErr.Requested),
				slog.Int("available", stockErr.Available),
			)
			return CheckoutResult{}, err
		}
		return CheckoutResult{}, s.tx.fatal(ctx, opCheckout, err)
	}

	s.metrics.SaleTotal.Observe(sale.Total.InexactFloat64())
	span.SetAttributes(attribute.Int64("sale.id", sale.ID))
	s.logger.InfoContext(ctx, "sale committed",
		slog.Int64("sale_id", sale.ID),
		slog.String("total", sale.Total.StringFixed(2)),
	)

	result = CheckoutResult{Sale: sale}
	result.LowStock, result.LowStockErr = s.lowStock.LowStockAlerts(ctx)
	if result.LowStockErr != nil {
		s.logger.WarnContext(ctx, "low stock evaluation failed after checkout",
			slog.Int64("sale_id", sale.ID),
			slog.Any("error", result.LowStockErr),
		)
	}

	return result, nil
}

func (s *saleService) checkoutTx(
	ctx context.Context,
	tx db.DB,
	lines []model.SaleLine,
	params CheckoutParams,
) (model.Sale, error) {
	requested := make(map[int64]int, len(lines))
	for _, line := range lines {
		requested[line.ProductID] += line.Quantity
	}
	ids := slices.Sorted(maps.Keys(requested))

	productRepo := s.productRepo.WithDB(tx)
	locked, err := productRepo.GetProductsForUpdate(ctx, ids)
	if err != nil {
		return model.Sale{}, fmt.Errorf("product repository get products for update: %w", err)
	}

	for _, line := range lines {
		product, ok := locked[line.ProductID]
		if !ok {
			return model.Sale{}, &apperr.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   requested[line.ProductID],
			}
		}
		if requested[line.ProductID] > product.Stock {
			return model.Sale{}, &apperr.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   requested[line.ProductID],
				Available:   product.Stock,
			}
		}
	}

	now := s.now().UTC()
	sale, err := s.saleRepo.WithDB(tx).CreateSale(ctx, model.Sale{
		SoldAt:     now,
		CustomerID: params.CustomerID,
		OperatorID: params.OperatorID,
		Lines:      lines,
		Total:      model.SumSubtotals(lines),
	})
	if err != nil {
		return model.Sale{}, fmt.Errorf("sale repository create sale: %w", err)
	}

	for _, id := range ids {
		product := locked[id]
		product.Stock -= requested[id]
		product.UpdatedAt = now
		if _, err := productRepo.UpdateProduct(ctx, product); err != nil {
			return model.Sale{}, fmt.Errorf("product repository update product %d: %w", id, err)
		}
	}

	ev := event.SaleCompletedEvent{
		SaleID:     sale.ID,
		SoldAt:     sale.SoldAt,
		CustomerID: sale.CustomerID,
		OperatorID: sale.OperatorID,
		Total:      sale.Total,
		Lines:      make([]event.SaleCompletedLine, 0, len(sale.Lines)),
	}
	for _, line := range sale.Lines {
		ev.Lines = append(ev.Lines, event.SaleCompletedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if err := writeOutboxMsg(ctx, s.outboxMsgRepo.WithDB(tx),
		event.TopicSaleCompleted, strconv.FormatInt(sale.ID, 10), ev); err != nil {
		return model.Sale{}, err
	}

	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, id int64) (model.Sale, error) {
	sale, err := s.saleRepo.GetSale(ctx, id)
	if err != nil {
		return model.Sale{}, fmt.Errorf("sale repository get sale: %w", err)
	}

	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context) ([]model.Sale, error) {
	sales, err := s.saleRepo.ListAllSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("sale repository list all sales: %w", err)
	}

	return sales, nil
}
