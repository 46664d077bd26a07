package memdb

import (
	"context"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

type operatorRepository struct {
	h handle
}

var _ repository.OperatorRepository = operatorRepository{}

// NewOperatorRepository returns an operator repository backed by store.
func NewOperatorRepository(store *Store) repository.OperatorRepository {
	return operatorRepository{h: handle{store: store}}
}

func (r operatorRepository) WithDB(d db.DB) repository.OperatorRepository {
	return operatorRepository{h: handleFor(r.h.store, d)}
}

func (r operatorRepository) CreateOperator(ctx context.Context, operator model.Operator) (model.Operator, error) {
	err := r.h.write(ctx, "CreateOperator", func(st *state) error {
		operator.ID = st.newID()
		st.operators[operator.ID] = operator
		return nil
	})
	if err != nil {
		return model.Operator{}, err
	}
	return operator, nil
}

func (r operatorRepository) GetOperator(ctx context.Context, id int64) (model.Operator, error) {
	var operator model.Operator
	err := r.h.read(ctx, "GetOperator", func(st *state) error {
		o, ok := st.operators[id]
		if !ok {
			return apperr.OperatorNotFoundErr
		}
		operator = o
		return nil
	})
	return operator, err
}

func (r operatorRepository) ListOperators(ctx context.Context) ([]model.Operator, error) {
	var operators []model.Operator
	err := r.h.read(ctx, "ListOperators", func(st *state) error {
		operators = make([]model.Operator, 0, len(st.operators))
		for _, o := range st.operators {
			operators = append(operators, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByID(operators, func(o model.Operator) int64 { return o.ID })
	return operators, nil
}

type customerRepository struct {
	h handle
}

var _ repository.CustomerRepository = customerRepository{}

// NewCustomerRepository returns a customer repository backed by store.
func NewCustomerRepository(store *Store) repository.CustomerRepository {
	return customerRepository{h: handle{store: store}}
}

func (r customerRepository) WithDB(d db.DB) repository.CustomerRepository {
	return customerRepository{h: handleFor(r.h.store, d)}
}

func (r customerRepository) CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error) {
	err := r.h.write(ctx, "CreateCustomer", func(st *state) error {
		customer.ID = st.newID()
		st.customers[customer.ID] = customer
		return nil
	})
	if err != nil {
		return model.Customer{}, err
	}
	return customer, nil
}

func (r customerRepository) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	var customer model.Customer
	err := r.h.read(ctx, "GetCustomer", func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return apperr.CustomerNotFoundErr
		}
		customer = c
		return nil
	})
	return customer, err
}

func (r customerRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.h.read(ctx, "ListCustomers", func(st *state) error {
		customers = make([]model.Customer, 0, len(st.customers))
		for _, c := range st.customers {
			customers = append(customers, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByID(customers, func(c model.Customer) int64 { return c.ID })
	return customers, nil
}
