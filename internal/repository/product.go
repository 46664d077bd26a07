package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

const productsBarcodeKey = "products_barcode_key"

type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	// GetProductsForUpdate reads and row-locks the given products until the
	// surrounding transaction ends. Locks are taken in ascending id order.
	// Missing ids are absent from the result.
	GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (model.Product, error)
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	ListLowStockProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, product model.Product) (model.Product, error)
	// UpdateProduct writes product if its Version still matches the stored
	// one and returns it with the next version. A stale version yields
	// apperr.ProductModifiedErr.
	UpdateProduct(ctx context.Context, product model.Product) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

const productColumns = `id, name, description, purchase_price, sale_price, stock, min_stock, barcode, created_at, updated_at, version`

type productRow struct {
	ID            int64          `db:"id"`
	Name          string         `db:"name"`
	Description   string         `db:"description"`
	PurchasePrice pgtype.Numeric `db:"purchase_price"`
	SalePrice     pgtype.Numeric `db:"sale_price"`
	Stock         int32          `db:"stock"`
	MinStock      int32          `db:"min_stock"`
	Barcode       *string        `db:"barcode"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	Version       int64          `db:"version"`
}

func (r productRepository) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r productRepository) FindProductByBarcode(ctx context.Context, barcode string) (model.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode)
}

func (r productRepository) GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	products, err := r.list(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	result := make(map[int64]model.Product, len(products))
	for _, p := range products {
		result[p.ID] = p
	}

	return result, nil
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}

	return products, nil
}

func (r productRepository) ListLowStockProducts(ctx context.Context) ([]model.Product, error) {
	products, err := r.list(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE stock < min_stock
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}

	return products, nil
}

func (r productRepository) CreateProduct(ctx context.Context, product model.Product) (model.Product, error) {
	rows, err := r.db.Query(ctx, `
		INSERT INTO products (name, description, purchase_price, sale_price, stock, min_stock, barcode, created_at, updated_at)
		VALUES (@name, @description, @purchase_price, @sale_price, @stock, @min_stock, @barcode, @created_at, @updated_at)
		RETURNING `+productColumns,
		productArgs(product),
	)
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", mapWriteError(err))
	}

	created, err := collectOneProduct(rows)
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", mapWriteError(err))
	}

	return created, nil
}

func (r productRepository) UpdateProduct(ctx context.Context, product model.Product) (model.Product, error) {
	args := productArgs(product)
	args["id"] = product.ID
	args["version"] = product.Version

	rows, err := r.db.Query(ctx, `
		UPDATE products
		SET name           = @name,
		    description    = @description,
		    purchase_price = @purchase_price,
		    sale_price     = @sale_price,
		    stock          = @stock,
		    min_stock      = @min_stock,
		    barcode        = @barcode,
		    updated_at     = @updated_at,
		    version        = version + 1
		WHERE id = @id AND version = @version
		RETURNING `+productColumns,
		args,
	)
	if err != nil {
		return model.Product{}, fmt.Errorf("update product: %w", mapWriteError(err))
	}

	updated, err := collectOneProduct(rows)
	if err != nil {
		if db.IsNoRows(err) {
			return model.Product{}, r.missedUpdate(ctx, product.ID)
		}
		return model.Product{}, fmt.Errorf("update product: %w", mapWriteError(err))
	}

	return updated, nil
}

// missedUpdate tells a stale version from a missing row after an update
// matched nothing.
func (r productRepository) missedUpdate(ctx context.Context, id int64) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check product exists: %w", err)
	}
	if exists {
		return apperr.ProductModifiedErr
	}
	return apperr.ProductNotFoundErr
}

func (r productRepository) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", mapWriteError(err))
	}

	return nil
}

func (r productRepository) getOne(ctx context.Context, sql string, args ...any) (model.Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return model.Product{}, fmt.Errorf("query product: %w", err)
	}

	product, err := collectOneProduct(rows)
	if err != nil {
		if db.IsNoRows(err) {
			return model.Product{}, apperr.ProductNotFoundErr
		}
		return model.Product{}, fmt.Errorf("collect product: %w", err)
	}

	return product, nil
}

func (r productRepository) list(ctx context.Context, sql string, args ...any) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	productRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}

	products := make([]model.Product, 0, len(productRows))
	for _, row := range productRows {
		product, err := productRowToModel(row)
		if err != nil {
			return nil, fmt.Errorf("convert product %d: %w", row.ID, err)
		}
		products = append(products, product)
	}

	return products, nil
}

func collectOneProduct(rows pgx.Rows) (model.Product, error) {
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		return model.Product{}, err
	}

	return productRowToModel(row)
}

func productArgs(product model.Product) pgx.NamedArgs {
	return pgx.NamedArgs{
		"name":           product.Name,
		"description":    product.Description,
		"purchase_price": decimalToNumeric(product.PurchasePrice),
		"sale_price":     decimalToNumeric(product.SalePrice),
		//nolint:gosec
		"stock": int32(product.Stock),
		//nolint:gosec
		"min_stock":  int32(product.MinStock),
		"barcode":    product.Barcode,
		"created_at": product.CreatedAt,
		"updated_at": product.UpdatedAt,
	}
}

func productRowToModel(row productRow) (model.Product, error) {
	purchasePrice, err := numericToDecimal(row.PurchasePrice)
	if err != nil {
		return model.Product{}, fmt.Errorf("purchase price: %w", err)
	}

	salePrice, err := numericToDecimal(row.SalePrice)
	if err != nil {
		return model.Product{}, fmt.Errorf("sale price: %w", err)
	}

	return model.Product{
		ID:            row.ID,
		Name:          row.Name,
		Description:   row.Description,
		PurchasePrice: purchasePrice,
		SalePrice:     salePrice,
		Stock:         int(row.Stock),
		MinStock:      int(row.MinStock),
		Barcode:       row.Barcode,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		Version:       row.Version,
	}, nil
}
