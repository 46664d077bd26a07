package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

// OrderLineRepository gives access to supplier purchase order lines.
type OrderLineRepository interface {
	WithDB(db db.DB) OrderLineRepository
	CreateOrderLine(ctx context.Context, line model.OrderLine) (model.OrderLine, error)
	ListOrderLinesByProduct(ctx context.Context, productID int64) ([]model.OrderLine, error)
	DeleteOrderLinesByProduct(ctx context.Context, productID int64) (int64, error)
}

type orderLineRepository struct {
	db db.DB
}

func NewOrderLineRepository(db db.DB) OrderLineRepository {
	return &orderLineRepository{
		db: db,
	}
}

func (r orderLineRepository) WithDB(db db.DB) OrderLineRepository {
	return &orderLineRepository{
		db: db,
	}
}

type orderLineRow struct {
	ID        int64          `db:"id"`
	OrderID   int64          `db:"order_id"`
	ProductID int64          `db:"product_id"`
	Quantity  int32          `db:"quantity"`
	UnitCost  pgtype.Numeric `db:"unit_cost"`
}

func (r orderLineRepository) CreateOrderLine(ctx context.Context, line model.OrderLine) (model.OrderLine, error) {
	if err := r.db.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_cost)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, line.OrderID, line.ProductID, line.Quantity, decimalToNumeric(line.UnitCost)).Scan(&line.ID); err != nil {
		return model.OrderLine{}, fmt.Errorf("insert order line: %w", mapWriteError(err))
	}

	return line, nil
}

func (r orderLineRepository) ListOrderLinesByProduct(ctx context.Context, productID int64) ([]model.OrderLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_cost
		FROM order_lines
		WHERE product_id = $1
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}

	lineRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[orderLineRow])
	if err != nil {
		return nil, fmt.Errorf("collect order lines: %w", err)
	}

	lines := make([]model.OrderLine, 0, len(lineRows))
	for _, row := range lineRows {
		unitCost, err := numericToDecimal(row.UnitCost)
		if err != nil {
			return nil, fmt.Errorf("order line %d unit cost: %w", row.ID, err)
		}
		lines = append(lines, model.OrderLine{
			ID:        row.ID,
			OrderID:   row.OrderID,
			ProductID: row.ProductID,
			Quantity:  int(row.Quantity),
			UnitCost:  unitCost,
		})
	}

	return lines, nil
}

func (r orderLineRepository) DeleteOrderLinesByProduct(ctx context.Context, productID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM order_lines WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("delete order lines: %w", mapWriteError(err))
	}

	return tag.RowsAffected(), nil
}
