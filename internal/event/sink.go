package event

import (
	"context"
	"log/slog"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
)

// AlertSink receives low-stock alerts for display or delivery.
type AlertSink interface {
	NotifyLowStock(ctx context.Context, alerts []model.LowStockAlert) error
}

// LogSink writes alerts to the logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("sink", "low_stock"))}
}

func (s *LogSink) NotifyLowStock(ctx context.Context, alerts []model.LowStockAlert) error {
	for _, a := range alerts {
		s.logger.WarnContext(ctx, "product stock below minimum",
			slog.Int64("product_id", a.ProductID),
			slog.String("product_name", a.ProductName),
			slog.Int("stock", a.Stock),
			slog.Int("min_stock", a.MinStock),
		)
	}
	return nil
}
