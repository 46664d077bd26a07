package memdb

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

var (
	errStockCheck   = errors.New(`new row for relation "products" violates check constraint "products_stock_check"`)
	errPriceCheck   = errors.New(`new row for relation "products" violates check constraint "products_price_check"`)
	errBarcodeTaken = errors.New(`duplicate key value violates unique constraint "products_barcode_key"`)
)

type productRepository struct {
	h handle
}

var _ repository.ProductRepository = productRepository{}

// NewProductRepository returns a product repository backed by store.
func NewProductRepository(store *Store) repository.ProductRepository {
	return productRepository{h: handle{store: store}}
}

func (r productRepository) WithDB(d db.DB) repository.ProductRepository {
	return productRepository{h: handleFor(r.h.store, d)}
}

func (r productRepository) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var product model.Product
	err := r.h.read(ctx, "GetProduct", func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return apperr.ProductNotFoundErr
		}
		product = p
		return nil
	})
	return product, err
}

func (r productRepository) GetProductsForUpdate(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	result := make(map[int64]model.Product, len(ids))
	err := r.h.read(ctx, "GetProductsForUpdate", func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				result[id] = p
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r productRepository) FindProductByBarcode(ctx context.Context, barcode string) (model.Product, error) {
	var product model.Product
	err := r.h.read(ctx, "FindProductByBarcode", func(st *state) error {
		for _, p := range st.products {
			if p.Barcode != nil && *p.Barcode == barcode {
				product = p
				return nil
			}
		}
		return apperr.ProductNotFoundErr
	})
	return product, err
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, "ListAllProducts", func(model.Product) bool { return true })
}

func (r productRepository) ListLowStockProducts(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, "ListLowStockProducts", func(p model.Product) bool { return p.Stock < p.MinStock })
}

func (r productRepository) CreateProduct(ctx context.Context, product model.Product) (model.Product, error) {
	err := r.h.write(ctx, "CreateProduct", func(st *state) error {
		if err := checkProduct(st, product, 0); err != nil {
			return err
		}
		product.ID = st.newID()
		product.Version = 1
		st.products[product.ID] = product
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return product, nil
}

func (r productRepository) UpdateProduct(ctx context.Context, product model.Product) (model.Product, error) {
	err := r.h.write(ctx, "UpdateProduct", func(st *state) error {
		current, ok := st.products[product.ID]
		if !ok {
			return apperr.ProductNotFoundErr
		}
		if current.Version != product.Version {
			return apperr.ProductModifiedErr
		}
		if err := checkProduct(st, product, product.ID); err != nil {
			return err
		}
		product.CreatedAt = current.CreatedAt
		product.Version++
		st.products[product.ID] = product
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return product, nil
}

func (r productRepository) DeleteProduct(ctx context.Context, id int64) error {
	return r.h.write(ctx, "DeleteProduct", func(st *state) error {
		for _, l := range st.saleLines {
			if l.ProductID == id {
				return &apperr.ReferentialConstraintError{Constraint: "sale_lines_product_id_fkey", Err: errForeignKey("sale_lines")}
			}
		}
		for _, l := range st.orderLines {
			if l.ProductID == id {
				return &apperr.ReferentialConstraintError{Constraint: "order_lines_product_id_fkey", Err: errForeignKey("order_lines")}
			}
		}
		delete(st.products, id)
		return nil
	})
}

func (r productRepository) list(ctx context.Context, op string, keep func(model.Product) bool) ([]model.Product, error) {
	var products []model.Product
	err := r.h.read(ctx, op, func(st *state) error {
		products = make([]model.Product, 0, len(st.products))
		for _, id := range slices.Sorted(maps.Keys(st.products)) {
			if p := st.products[id]; keep(p) {
				products = append(products, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// checkProduct enforces the table constraints. self is the id of the row
// being updated, zero on insert.
func checkProduct(st *state, p model.Product, self int64) error {
	if p.Stock < 0 || p.MinStock < 0 {
		return apperr.InvalidProductErr.WrapParent(errStockCheck)
	}
	if p.PurchasePrice.IsNegative() || p.SalePrice.IsNegative() {
		return apperr.InvalidProductErr.WrapParent(errPriceCheck)
	}
	if p.Barcode != nil {
		for id, other := range st.products {
			if id != self && other.Barcode != nil && *other.Barcode == *p.Barcode {
				return apperr.DuplicateBarcodeErr.WrapParent(errBarcodeTaken)
			}
		}
	}
	return nil
}

func sortByID[T any](items []T, id func(T) int64) {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
}
