package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

// OperatorRepository gives access to the staff allowed to record sales.
type OperatorRepository interface {
	WithDB(db db.DB) OperatorRepository
	CreateOperator(ctx context.Context, operator model.Operator) (model.Operator, error)
	GetOperator(ctx context.Context, id int64) (model.Operator, error)
	ListOperators(ctx context.Context) ([]model.Operator, error)
}

// CustomerRepository gives access to the customers a sale may name.
type CustomerRepository interface {
	WithDB(db db.DB) CustomerRepository
	CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
}

type operatorRepository struct {
	db db.DB
}

func NewOperatorRepository(db db.DB) OperatorRepository {
	return &operatorRepository{
		db: db,
	}
}

func (r operatorRepository) WithDB(db db.DB) OperatorRepository {
	return &operatorRepository{
		db: db,
	}
}

type operatorRow struct {
	ID        int64     `db:"id"`
	FullName  string    `db:"full_name"`
	CreatedAt time.Time `db:"created_at"`
}

func (row operatorRow) toModel() model.Operator {
	return model.Operator{ID: row.ID, FullName: row.FullName, CreatedAt: row.CreatedAt}
}

func (r operatorRepository) CreateOperator(ctx context.Context, operator model.Operator) (model.Operator, error) {
	if err := r.db.QueryRow(ctx, `
		INSERT INTO operators (full_name, created_at)
		VALUES ($1, $2)
		RETURNING id
	`, operator.FullName, operator.CreatedAt).Scan(&operator.ID); err != nil {
		return model.Operator{}, fmt.Errorf("insert operator: %w", err)
	}

	return operator, nil
}

func (r operatorRepository) GetOperator(ctx context.Context, id int64) (model.Operator, error) {
	rows, err := r.db.Query(ctx, `SELECT id, full_name, created_at FROM operators WHERE id = $1`, id)
	if err != nil {
		return model.Operator{}, fmt.Errorf("query operator: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[operatorRow])
	if err != nil {
		if db.IsNoRows(err) {
			return model.Operator{}, apperr.OperatorNotFoundErr
		}
		return model.Operator{}, fmt.Errorf("collect operator: %w", err)
	}

	return row.toModel(), nil
}

func (r operatorRepository) ListOperators(ctx context.Context) ([]model.Operator, error) {
	rows, err := r.db.Query(ctx, `SELECT id, full_name, created_at FROM operators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query operators: %w", err)
	}

	operatorRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[operatorRow])
	if err != nil {
		return nil, fmt.Errorf("collect operators: %w", err)
	}

	operators := make([]model.Operator, 0, len(operatorRows))
	for _, row := range operatorRows {
		operators = append(operators, row.toModel())
	}

	return operators, nil
}

type customerRepository struct {
	db db.DB
}

func NewCustomerRepository(db db.DB) CustomerRepository {
	return &customerRepository{
		db: db,
	}
}

func (r customerRepository) WithDB(db db.DB) CustomerRepository {
	return &customerRepository{
		db: db,
	}
}

type customerRow struct {
	ID        int64     `db:"id"`
	FullName  string    `db:"full_name"`
	Phone     *string   `db:"phone"`
	CreatedAt time.Time `db:"created_at"`
}

func (row customerRow) toModel() model.Customer {
	return model.Customer{ID: row.ID, FullName: row.FullName, Phone: row.Phone, CreatedAt: row.CreatedAt}
}

func (r customerRepository) CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error) {
	if err := r.db.QueryRow(ctx, `
		INSERT INTO customers (full_name, phone, created_at)
		VALUES (@full_name, @phone, @created_at)
		RETURNING id
	`, pgx.NamedArgs{
		"full_name":  customer.FullName,
		"phone":      customer.Phone,
		"created_at": customer.CreatedAt,
	}).Scan(&customer.ID); err != nil {
		return model.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	return customer, nil
}

func (r customerRepository) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT id, full_name, phone, created_at FROM customers WHERE id = $1`, id)
	if err != nil {
		return model.Customer{}, fmt.Errorf("query customer: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[customerRow])
	if err != nil {
		if db.IsNoRows(err) {
			return model.Customer{}, apperr.CustomerNotFoundErr
		}
		return model.Customer{}, fmt.Errorf("collect customer: %w", err)
	}

	return row.toModel(), nil
}

func (r customerRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT id, full_name, phone, created_at FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}

	customerRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[customerRow])
	if err != nil {
		return nil, fmt.Errorf("collect customers: %w", err)
	}

	customers := make([]model.Customer, 0, len(customerRows))
	for _, row := range customerRows {
		customers = append(customers, row.toModel())
	}

	return customers, nil
}
