package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/mq"
)

// LowStockReader evaluates the current low-stock alerts.
type LowStockReader interface {
	LowStockAlerts(ctx context.Context) ([]model.LowStockAlert, error)
}

// Service consumes inventory events and forwards low-stock alerts to the
// notification sink.
type Service struct {
	logger     *slog.Logger
	mqConsumer mq.Consumer
	lowStock   LowStockReader
	sink       AlertSink
}

// New creates a new event service.
func New(
	logger *slog.Logger,
	mqConsumer mq.Consumer,
	lowStock LowStockReader,
	sink AlertSink,
) *Service {
	return &Service{
		logger:     logger.With(slog.String("service", "event")),
		mqConsumer: mqConsumer,
		lowStock:   lowStock,
		sink:       sink,
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	if err := s.mqConsumer.RegisterHandler(TopicSaleCompleted, jsonHandler(s.handleSaleCompletedEvent)); err != nil {
		return nil, fmt.Errorf("register sale completed event handler: %w", err)
	}

	if err := s.mqConsumer.RegisterHandler(TopicProductDeleted, jsonHandler(s.handleProductDeletedEvent)); err != nil {
		return nil, fmt.Errorf("register product deleted event handler: %w", err)
	}

	mqCleanup, err := s.mqConsumer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mq consumer: %w", err)
	}

	cleanup := func() {
		mqCleanup()
	}

	return cleanup, nil
}

func jsonHandler[T any](handle func(ctx context.Context, ev T) error) mq.HandlerFunc {
	return func(ctx context.Context, topic string, payload []byte) error {
		var ev T
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("unmarshal %s event: %w", topic, err)
		}

		if err := handle(ctx, ev); err != nil {
			return fmt.Errorf("handle %s event: %w", topic, err)
		}

		return nil
	}
}

func (s *Service) handleSaleCompletedEvent(ctx context.Context, ev SaleCompletedEvent) error {
	s.logger.InfoContext(ctx, "handling sale completed event",
		slog.Int64("sale_id", ev.SaleID),
		slog.String("total", ev.Total.StringFixed(2)),
	)

	sold := make(map[int64]struct{}, len(ev.Lines))
	for _, l := range ev.Lines {
		sold[l.ProductID] = struct{}{}
	}

	alerts, err := s.lowStock.LowStockAlerts(ctx)
	if err != nil {
		return fmt.Errorf("evaluate low stock: %w", err)
	}

	// only the products of this sale can have crossed their threshold
	var crossed []model.LowStockAlert
	for _, a := range alerts {
		if _, ok := sold[a.ProductID]; ok {
			crossed = append(crossed, a)
		}
	}

	if len(crossed) == 0 {
		return nil
	}

	if err := s.sink.NotifyLowStock(ctx, crossed); err != nil {
		return fmt.Errorf("notify low stock: %w", err)
	}

	return nil
}

func (s *Service) handleProductDeletedEvent(ctx context.Context, ev ProductDeletedEvent) error {
	s.logger.InfoContext(ctx, "handling product deleted event",
		slog.Int64("product_id", ev.ProductID),
		slog.String("name", ev.Name),
		slog.Int64("sale_lines_deleted", ev.SaleLinesDeleted),
		slog.Int64("order_lines_deleted", ev.OrderLinesDeleted),
	)
	return nil
}
