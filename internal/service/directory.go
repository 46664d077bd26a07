package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
)

// DirectoryService registers the operators and customers a sale refers to.
type DirectoryService interface {
	CreateOperator(ctx context.Context, operator model.Operator) (model.Operator, error)
	GetOperator(ctx context.Context, id int64) (model.Operator, error)
	ListOperators(ctx context.Context) ([]model.Operator, error)
	CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
}

type directoryService struct {
	logger       *slog.Logger
	validator    validator.Validator
	now          func() time.Time
	operatorRepo repository.OperatorRepository
	customerRepo repository.CustomerRepository
}

type DirectoryServiceParams struct {
	Logger       *slog.Logger
	Validator    validator.Validator
	OperatorRepo repository.OperatorRepository
	CustomerRepo repository.CustomerRepository
}

func NewDirectoryService(p DirectoryServiceParams) DirectoryService {
	return &directoryService{
		logger:       p.Logger.With(slog.String("service", "directory")),
		validator:    p.Validator,
		now:          time.Now,
		operatorRepo: p.OperatorRepo,
		customerRepo: p.CustomerRepo,
	}
}

func (s *directoryService) CreateOperator(ctx context.Context, operator model.Operator) (model.Operator, error) {
	if err := s.validator.Validate(operator); err != nil {
		return model.Operator{}, apperr.InvalidOperatorErr.WrapParent(err)
	}

	operator.CreatedAt = s.now().UTC()
	created, err := s.operatorRepo.CreateOperator(ctx, operator)
	if err != nil {
		return model.Operator{}, fmt.Errorf("operator repository create operator: %w", err)
	}

	s.logger.InfoContext(ctx, "operator created", slog.Int64("operator_id", created.ID))
	return created, nil
}

func (s *directoryService) GetOperator(ctx context.Context, id int64) (model.Operator, error) {
	operator, err := s.operatorRepo.GetOperator(ctx, id)
	if err != nil {
		return model.Operator{}, fmt.Errorf("operator repository get operator: %w", err)
	}

	return operator, nil
}

func (s *directoryService) ListOperators(ctx context.Context) ([]model.Operator, error) {
	operators, err := s.operatorRepo.ListOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("operator repository list operators: %w", err)
	}

	return operators, nil
}

func (s *directoryService) CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error) {
	if err := s.validator.Validate(customer); err != nil {
		return model.Customer{}, apperr.InvalidCustomerErr.WrapParent(err)
	}

	customer.CreatedAt = s.now().UTC()
	created, err := s.customerRepo.CreateCustomer(ctx, customer)
	if err != nil {
		return model.Customer{}, fmt.Errorf("customer repository create customer: %w", err)
	}

	s.logger.InfoContext(ctx, "customer created", slog.Int64("customer_id", created.ID))
	return created, nil
}

func (s *directoryService) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	customer, err := s.customerRepo.GetCustomer(ctx, id)
	if err != nil {
		return model.Customer{}, fmt.Errorf("customer repository get customer: %w", err)
	}

	return customer, nil
}

func (s *directoryService) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	customers, err := s.customerRepo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("customer repository list customers: %w", err)
	}

	return customers, nil
}
