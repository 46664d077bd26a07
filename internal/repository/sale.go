package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

type SaleRepository interface {
	WithDB(db db.DB) SaleRepository
	// CreateSale inserts the sale and its lines and returns them with their
	// assigned ids.
	CreateSale(ctx context.Context, sale model.Sale) (model.Sale, error)
	GetSale(ctx context.Context, id int64) (model.Sale, error)
	ListAllSales(ctx context.Context) ([]model.Sale, error)
	ListSaleLinesByProduct(ctx context.Context, productID int64) ([]model.SaleLine, error)
	DeleteSaleLinesByProduct(ctx context.Context, productID int64) (int64, error)
}

type saleRepository struct {
	db db.DB
}

func NewSaleRepository(db db.DB) SaleRepository {
	return &saleRepository{
		db: db,
	}
}

func (r saleRepository) WithDB(db db.DB) SaleRepository {
	return &saleRepository{
		db: db,
	}
}

type saleRow struct {
	ID         int64          `db:"id"`
	SoldAt     time.Time      `db:"sold_at"`
	CustomerID *int64         `db:"customer_id"`
	OperatorID int64          `db:"operator_id"`
	Total      pgtype.Numeric `db:"total"`
}

type saleLineRow struct {
	ID          int64          `db:"id"`
	SaleID      int64          `db:"sale_id"`
	ProductID   int64          `db:"product_id"`
	ProductName string         `db:"product_name"`
	Quantity    int32          `db:"quantity"`
	UnitPrice   pgtype.Numeric `db:"unit_price"`
	Subtotal    pgtype.Numeric `db:"subtotal"`
}

const saleLineSelect = `
	SELECT l.id, l.sale_id, l.product_id, p.name AS product_name, l.quantity, l.unit_price, l.subtotal
	FROM sale_lines l
	JOIN products p ON p.id = l.product_id
`

func (r saleRepository) CreateSale(ctx context.Context, sale model.Sale) (model.Sale, error) {
	if err := r.db.QueryRow(ctx, `
		INSERT INTO sales (sold_at, customer_id, operator_id, total)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, sale.SoldAt, sale.CustomerID, sale.OperatorID, decimalToNumeric(sale.Total)).Scan(&sale.ID); err != nil {
		return model.Sale{}, fmt.Errorf("insert sale: %w", mapWriteError(err))
	}

	batch := &pgx.Batch{}
	for i, line := range sale.Lines {
		batch.Queue(`
			INSERT INTO sale_lines (sale_id, product_id, line_no, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, sale.ID, line.ProductID, i+1, line.Quantity,
			decimalToNumeric(line.UnitPrice), decimalToNumeric(line.Subtotal))
	}

	results := r.db.SendBatch(ctx, batch)
	lines := make([]model.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		line.SaleID = sale.ID
		if err := results.QueryRow().Scan(&line.ID); err != nil {
			//nolint:errcheck
			results.Close()
			return model.Sale{}, fmt.Errorf("insert sale line %d: %w", i+1, mapWriteError(err))
		}
		lines[i] = line
	}
	if err := results.Close(); err != nil {
		return model.Sale{}, fmt.Errorf("close sale line batch: %w", mapWriteError(err))
	}

	sale.Lines = lines
	return sale, nil
}

func (r saleRepository) GetSale(ctx context.Context, id int64) (model.Sale, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sold_at, customer_id, operator_id, total
		FROM sales
		WHERE id = $1
	`, id)
	if err != nil {
		return model.Sale{}, fmt.Errorf("query sale: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[saleRow])
	if err != nil {
		if db.IsNoRows(err) {
			return model.Sale{}, apperr.SaleNotFoundErr
		}
		return model.Sale{}, fmt.Errorf("collect sale: %w", err)
	}

	lines, err := r.listLines(ctx, saleLineSelect+` WHERE l.sale_id = $1 ORDER BY l.line_no`, id)
	if err != nil {
		return model.Sale{}, err
	}

	return saleRowToModel(row, lines)
}

func (r saleRepository) ListAllSales(ctx context.Context) ([]model.Sale, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sold_at, customer_id, operator_id, total
		FROM sales
		ORDER BY sold_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}

	saleRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[saleRow])
	if err != nil {
		return nil, fmt.Errorf("collect sales: %w", err)
	}

	lines, err := r.listLines(ctx, saleLineSelect+` ORDER BY l.sale_id, l.line_no`)
	if err != nil {
		return nil, err
	}

	linesBySale := make(map[int64][]model.SaleLine, len(saleRows))
	for _, line := range lines {
		linesBySale[line.SaleID] = append(linesBySale[line.SaleID], line)
	}

	sales := make([]model.Sale, 0, len(saleRows))
	for _, row := range saleRows {
		sale, err := saleRowToModel(row, linesBySale[row.ID])
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}

	return sales, nil
}

func (r saleRepository) ListSaleLinesByProduct(ctx context.Context, productID int64) ([]model.SaleLine, error) {
	return r.listLines(ctx, saleLineSelect+` WHERE l.product_id = $1 ORDER BY l.sale_id, l.line_no`, productID)
}

func (r saleRepository) DeleteSaleLinesByProduct(ctx context.Context, productID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sale_lines WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("delete sale lines: %w", mapWriteError(err))
	}

	return tag.RowsAffected(), nil
}

func (r saleRepository) listLines(ctx context.Context, sql string, args ...any) ([]model.SaleLine, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sale lines: %w", err)
	}

	lineRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[saleLineRow])
	if err != nil {
		return nil, fmt.Errorf("collect sale lines: %w", err)
	}

	lines := make([]model.SaleLine, 0, len(lineRows))
	for _, row := range lineRows {
		unitPrice, err := numericToDecimal(row.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("sale line %d unit price: %w", row.ID, err)
		}
		subtotal, err := numericToDecimal(row.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("sale line %d subtotal: %w", row.ID, err)
		}

		lines = append(lines, model.SaleLine{
			ID:          row.ID,
			SaleID:      row.SaleID,
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			Quantity:    int(row.Quantity),
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
		})
	}

	return lines, nil
}

func saleRowToModel(row saleRow, lines []model.SaleLine) (model.Sale, error) {
	total, err := numericToDecimal(row.Total)
	if err != nil {
		return model.Sale{}, fmt.Errorf("sale %d total: %w", row.ID, err)
	}

	if lines == nil {
		lines = []model.SaleLine{}
	}

	return model.Sale{
		ID:         row.ID,
		SoldAt:     row.SoldAt,
		CustomerID: row.CustomerID,
		OperatorID: row.OperatorID,
		Lines:      lines,
		Total:      total,
	}, nil
}
