package apperr

import (
	"errors"
	"fmt"

	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/zerror"
)

const (
	ValidationErrorCode            = "VALIDATION_FAILED"
	InvalidProductErrorCode        = "INVALID_PRODUCT"
	InvalidQuantityErrorCode       = "INVALID_QUANTITY"
	EmptyCartErrorCode             = "EMPTY_CART"
	InsufficientStockErrorCode     = "INSUFFICIENT_STOCK"
	StockRemainingErrorCode        = "STOCK_REMAINING"
	ReferentialConstraintErrorCode = "REFERENTIAL_CONSTRAINT"
	TransactionErrorCode           = "TRANSACTION_FAILED"
	ProductNotFoundErrorCode       = "PRODUCT_NOT_FOUND"
	SaleNotFoundErrorCode          = "SALE_NOT_FOUND"
	DuplicateBarcodeErrorCode      = "DUPLICATE_BARCODE"
	ProductModifiedErrorCode       = "PRODUCT_MODIFIED"
	InvalidCustomerErrorCode       = "INVALID_CUSTOMER"
	InvalidOperatorErrorCode       = "INVALID_OPERATOR"
	CustomerNotFoundErrorCode      = "CUSTOMER_NOT_FOUND"
	OperatorNotFoundErrorCode      = "OPERATOR_NOT_FOUND"
)

var (
	ValidationErr            = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	InvalidProductErr        = zerror.NewValidationFailed(InvalidProductErrorCode, "invalid product")
	InvalidQuantityErr       = zerror.NewValidationFailed(InvalidQuantityErrorCode, "quantity must be a positive integer")
	EmptyCartErr             = zerror.NewUnprocessableEntity(EmptyCartErrorCode, "cart is empty")
	InsufficientStockErr     = zerror.NewUnprocessableEntity(InsufficientStockErrorCode, "insufficient stock")
	StockRemainingErr        = zerror.NewConflict(StockRemainingErrorCode, "product still has stock")
	ReferentialConstraintErr = zerror.NewConflict(ReferentialConstraintErrorCode, "operation violates a reference to other records")
	TransactionErr           = zerror.NewInternalServerError(TransactionErrorCode, "transaction failed")
	ProductNotFoundErr       = zerror.NewNotFound(ProductNotFoundErrorCode, "product not found")
	SaleNotFoundErr          = zerror.NewNotFound(SaleNotFoundErrorCode, "sale not found")
	DuplicateBarcodeErr      = zerror.NewConflict(DuplicateBarcodeErrorCode, "barcode already used by another product")
	ProductModifiedErr       = zerror.NewConflict(ProductModifiedErrorCode, "product was modified since it was read")
	InvalidCustomerErr       = zerror.NewValidationFailed(InvalidCustomerErrorCode, "invalid customer")
	InvalidOperatorErr       = zerror.NewValidationFailed(InvalidOperatorErrorCode, "invalid operator")
	CustomerNotFoundErr      = zerror.NewNotFound(CustomerNotFoundErrorCode, "customer not found")
	OperatorNotFoundErr      = zerror.NewNotFound(OperatorNotFoundErrorCode, "operator not found")
)

// EmptyCartError is returned by checkout when the cart has no lines.
type EmptyCartError struct{}

func (e *EmptyCartError) Error() string { return "cart is empty" }

func (e *EmptyCartError) Unwrap() error { return EmptyCartErr }

// InvalidQuantityError is returned when a cart line quantity is not positive.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: must be a positive integer", e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error { return InvalidQuantityErr }

// InsufficientStockError names the product whose stock cannot cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return InsufficientStockErr.WithMsg(e.Error())
}

// StockRemainingError refuses the deletion of a product that still has units.
type StockRemainingError struct {
	ProductID   int64
	ProductName string
	Stock       int
}

func (e *StockRemainingError) Error() string {
	return fmt.Sprintf("cannot delete %q: %d units remain in stock", e.ProductName, e.Stock)
}

func (e *StockRemainingError) Unwrap() error {
	return StockRemainingErr.WithMsg(e.Error())
}

// ReferentialConstraintError reports a foreign key violation caused by data
// outside the engine's control.
type ReferentialConstraintError struct {
	Constraint string
	Err        error
}

func (e *ReferentialConstraintError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("referential constraint violated: %v", e.Err)
	}
	return fmt.Sprintf("referential constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ReferentialConstraintError) Unwrap() []error {
	return []error{ReferentialConstraintErr, e.Err}
}

// TransactionError is any unexpected persistence failure. The transaction
// has been rolled back and the caller may retry.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	return []error{TransactionErr, e.Err}
}

// Class groups errors by how the caller is expected to react.
type Class uint8

const (
	// ClassFatal is an unexpected failure, logged and surfaced generically.
	ClassFatal Class = iota
	// ClassValidation is rejected before any persistence attempt.
	ClassValidation
	// ClassBusinessRule is detected inside the atomic unit and fully rolled back.
	ClassBusinessRule
	// ClassConstraint is a referential, uniqueness or stale-write violation.
	ClassConstraint
	// ClassNotFound is a missing record.
	ClassNotFound
)

func (c Class) String() string {
	return [...]string{"FATAL", "VALIDATION", "BUSINESS_RULE", "CONSTRAINT", "NOT_FOUND"}[c]
}

// Classify returns the class of err. Unknown errors are fatal.
func Classify(err error) Class {
	switch {
	case errors.Is(err, EmptyCartErr),
		errors.Is(err, InvalidQuantityErr),
		errors.Is(err, InvalidProductErr),
		errors.Is(err, InvalidCustomerErr),
		errors.Is(err, InvalidOperatorErr),
		errors.Is(err, ValidationErr):
		return ClassValidation
	case errors.Is(err, InsufficientStockErr),
		errors.Is(err, StockRemainingErr):
		return ClassBusinessRule
	case errors.Is(err, ReferentialConstraintErr),
		errors.Is(err, DuplicateBarcodeErr),
		errors.Is(err, ProductModifiedErr):
		return ClassConstraint
	case errors.Is(err, ProductNotFoundErr),
		errors.Is(err, SaleNotFoundErr),
		errors.Is(err, CustomerNotFoundErr),
		errors.Is(err, OperatorNotFoundErr):
		return ClassNotFound
	default:
		return ClassFatal
	}
}
