package memdb

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

func errForeignKey(table string) error {
	return fmt.Errorf("update or delete violates foreign key constraint on table %q", table)
}

type saleRepository struct {
	h handle
}

var _ repository.SaleRepository = saleRepository{}

// NewSaleRepository returns a sale repository backed by store.
func NewSaleRepository(store *Store) repository.SaleRepository {
	return saleRepository{h: handle{store: store}}
}

func (r saleRepository) WithDB(d db.DB) repository.SaleRepository {
	return saleRepository{h: handleFor(r.h.store, d)}
}

func (r saleRepository) CreateSale(ctx context.Context, sale model.Sale) (model.Sale, error) {
	err := r.h.write(ctx, "CreateSale", func(st *state) error {
		if _, ok := st.operators[sale.OperatorID]; !ok {
			return &apperr.ReferentialConstraintError{Constraint: "sales_operator_id_fkey", Err: errForeignKey("operators")}
		}
		if sale.CustomerID != nil {
			if _, ok := st.customers[*sale.CustomerID]; !ok {
				return &apperr.ReferentialConstraintError{Constraint: "sales_customer_id_fkey", Err: errForeignKey("customers")}
			}
		}

		sale.ID = st.newID()
		lines := make([]model.SaleLine, len(sale.Lines))
		for i, line := range sale.Lines {
			if _, ok := st.products[line.ProductID]; !ok {
				return &apperr.ReferentialConstraintError{Constraint: "sale_lines_product_id_fkey", Err: errForeignKey("products")}
			}
			line.ID = st.newID()
			line.SaleID = sale.ID
			st.saleLines[line.ID] = line
			lines[i] = line
		}
		sale.Lines = lines

		header := sale
		header.Lines = nil
		st.sales[sale.ID] = header
		return nil
	})
	if err != nil {
		return model.Sale{}, err
	}
	return sale, nil
}

func (r saleRepository) GetSale(ctx context.Context, id int64) (model.Sale, error) {
	var sale model.Sale
	err := r.h.read(ctx, "GetSale", func(st *state) error {
		s, ok := st.sales[id]
		if !ok {
			return apperr.SaleNotFoundErr
		}
		sale = withLines(st, s)
		return nil
	})
	return sale, err
}

func (r saleRepository) ListAllSales(ctx context.Context) ([]model.Sale, error) {
	var sales []model.Sale
	err := r.h.read(ctx, "ListAllSales", func(st *state) error {
		sales = make([]model.Sale, 0, len(st.sales))
		for _, s := range st.sales {
			sales = append(sales, withLines(st, s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(sales, func(a, b model.Sale) int {
		if c := b.SoldAt.Compare(a.SoldAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sales, nil
}

func (r saleRepository) ListSaleLinesByProduct(ctx context.Context, productID int64) ([]model.SaleLine, error) {
	var lines []model.SaleLine
	err := r.h.read(ctx, "ListSaleLinesByProduct", func(st *state) error {
		lines = []model.SaleLine{}
		for _, l := range st.saleLines {
			if l.ProductID == productID {
				lines = append(lines, l)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByID(lines, func(l model.SaleLine) int64 { return l.ID })
	return lines, nil
}

func (r saleRepository) DeleteSaleLinesByProduct(ctx context.Context, productID int64) (int64, error) {
	var deleted int64
	err := r.h.write(ctx, "DeleteSaleLinesByProduct", func(st *state) error {
		for id, l := range st.saleLines {
			if l.ProductID == productID {
				delete(st.saleLines, id)
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func withLines(st *state, sale model.Sale) model.Sale {
	lines := []model.SaleLine{}
	for _, l := range st.saleLines {
		if l.SaleID == sale.ID {
			lines = append(lines, l)
		}
	}
	sortByID(lines, func(l model.SaleLine) int64 { return l.ID })
	sale.Lines = lines
	return sale
}
