package memdb

import (
	"context"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

type orderLineRepository struct {
	h handle
}

var _ repository.OrderLineRepository = orderLineRepository{}

// NewOrderLineRepository returns an order line repository backed by store.
func NewOrderLineRepository(store *Store) repository.OrderLineRepository {
	return orderLineRepository{h: handle{store: store}}
}

func (r orderLineRepository) WithDB(d db.DB) repository.OrderLineRepository {
	return orderLineRepository{h: handleFor(r.h.store, d)}
}

func (r orderLineRepository) CreateOrderLine(ctx context.Context, line model.OrderLine) (model.OrderLine, error) {
	err := r.h.write(ctx, "CreateOrderLine", func(st *state) error {
		if _, ok := st.products[line.ProductID]; !ok {
			return &apperr.ReferentialConstraintError{Constraint: "order_lines_product_id_fkey", Err: errForeignKey("products")}
		}
		line.ID = st.newID()
		st.orderLines[line.ID] = line
		return nil
	})
	if err != nil {
		return model.OrderLine{}, err
	}
	return line, nil
}

func (r orderLineRepository) ListOrderLinesByProduct(ctx context.Context, productID int64) ([]model.OrderLine, error) {
	var lines []model.OrderLine
	err := r.h.read(ctx, "ListOrderLinesByProduct", func(st *state) error {
		lines = []model.OrderLine{}
		for _, l := range st.orderLines {
			if l.ProductID == productID {
				lines = append(lines, l)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByID(lines, func(l model.OrderLine) int64 { return l.ID })
	return lines, nil
}

func (r orderLineRepository) DeleteOrderLinesByProduct(ctx context.Context, productID int64) (int64, error) {
	var deleted int64
	err := r.h.write(ctx, "DeleteOrderLinesByProduct", func(st *state) error {
		for id, l := range st.orderLines {
			if l.ProductID == productID {
				delete(st.orderLines, id)
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
