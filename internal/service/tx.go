package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/outbox"
)

const minRetryDelay = time.Millisecond

// txRunner runs an atomic unit and retries it from scratch when the store
// aborted it with a serialization failure or a deadlock.
type txRunner struct {
	db      db.DB
	cfg     config.Inventory
	metrics *Metrics
	logger  *slog.Logger
}

func (r txRunner) run(ctx context.Context, op string, txFunc func(ctx context.Context, tx db.DB) error) error {
	base := r.cfg.TxRetryBaseDelay
	if base < minRetryDelay {
		base = minRetryDelay
	}
	backoff := retry.WithMaxRetries(r.cfg.TxMaxRetries, retry.NewExponential(base))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			r.metrics.TxRetries.WithLabelValues(op).Inc()
			r.logger.WarnContext(ctx, "retrying transaction",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
			)
		}

		if r.cfg.TxTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.cfg.TxTimeout)
			defer cancel()
		}

		err := r.db.WithTx(ctx, func(tx db.DB) error {
			return txFunc(ctx, tx)
		})
		if err != nil && db.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// fatal wraps err in a TransactionError unless it is one of the expected
// application errors, which are returned unchanged.
func (r txRunner) fatal(ctx context.Context, op string, err error) error {
	if apperr.Classify(err) != apperr.ClassFatal {
		return err
	}

	var txErr *apperr.TransactionError
	if !errors.As(err, &txErr) {
		txErr = &apperr.TransactionError{Op: op, Err: err}
	}

	r.logger.ErrorContext(ctx, "transaction failed",
		slog.String("operation", op),
		slog.Any("error", err),
	)

	return txErr
}

func writeOutboxMsg(
	ctx context.Context,
	repo repository.OutboxMsgRepository,
	topic string,
	partitionKey string,
	ev any,
) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	if err := repo.CreateOutboxMsg(ctx, repository.CreateOutboxMsgParams{
		Topic:        topic,
		Headers:      outbox.BuildHeaders(ctx),
		Payload:      payload,
		PartitionKey: &partitionKey,
	}); err != nil {
		return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
	}

	return nil
}

func isRefusal(err error) bool {
	switch apperr.Classify(err) {
	case apperr.ClassValidation, apperr.ClassBusinessRule, apperr.ClassNotFound:
		return true
	default:
		return false
	}
}

func isConflict(err error) bool {
	return apperr.Classify(err) == apperr.ClassConstraint
}
