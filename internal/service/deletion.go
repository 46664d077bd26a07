package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/event"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

var tracer = otel.Tracer("internal/service")

const opDeleteProduct = "delete product"

func (s *inventoryService) DeleteProduct(ctx context.Context, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.DeleteProduct",
		trace.WithAttributes(attribute.Int64("product.id", id)))
	defer func() {
		s.metrics.Deletions.WithLabelValues(outcomeOf(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var deleted *event.ProductDeletedEvent

	err = s.tx.run(ctx, opDeleteProduct, func(ctx context.Context, tx db.DB) error {
		deleted = nil

		locked, err := s.productRepo.WithDB(tx).GetProductsForUpdate(ctx, []int64{id})
		if err != nil {
			return fmt.Errorf("product repository get products for update: %w", err)
		}

		product, ok := locked[id]
		if !ok {
			return nil
		}

		if product.Stock > 0 {
			return &apperr.StockRemainingError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Stock:       product.Stock,
			}
		}

		saleLines, err := s.saleRepo.WithDB(tx).DeleteSaleLinesByProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("sale repository delete sale lines by product: %w", err)
		}

		orderLines, err := s.orderLineRepo.WithDB(tx).DeleteOrderLinesByProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("order line repository delete order lines by product: %w", err)
		}

		if err := s.productRepo.WithDB(tx).DeleteProduct(ctx, id); err != nil {
			return fmt.Errorf("product repository delete product: %w", err)
		}

		deleted = &event.ProductDeletedEvent{
			ProductID:         product.ID,
			Name:              product.Name,
			SaleLinesDeleted:  saleLines,
			OrderLinesDeleted: orderLines,
		}

		return writeOutboxMsg(ctx, s.outboxMsgRepo.WithDB(tx),
			event.TopicProductDeleted, strconv.FormatInt(id, 10), deleted)
	})
	if err != nil {
		var stockErr *apperr.StockRemainingError
		if errors.As(err, &stockErr) {
			s.logger.InfoContext(ctx, "product deletion refused",
				slog.Int64("product_id", id),
				slog.Int("stock", stockErr.Stock),
			)
			return err
		}
		return s.tx.fatal(ctx, opDeleteProduct, err)
	}

	if deleted == nil {
		s.logger.DebugContext(ctx, "product already absent", slog.Int64("product_id", id))
		return nil
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.Int64("product_id", id),
		slog.Int64("sale_lines_deleted", deleted.SaleLinesDeleted),
		slog.Int64("order_lines_deleted", deleted.OrderLinesDeleted),
	)

	return nil
}
