package repository

import (
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/apperr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

// mapWriteError turns constraint violations into application errors.
// Other errors are returned unchanged.
func mapWriteError(err error) error {
	if name, ok := db.ForeignKeyViolation(err); ok {
		return &apperr.ReferentialConstraintError{Constraint: name, Err: err}
	}
	if name, ok := db.UniqueViolation(err); ok && name == productsBarcodeKey {
		return apperr.DuplicateBarcodeErr.WrapParent(err)
	}
	if _, ok := db.CheckViolation(err); ok {
		return apperr.InvalidProductErr.WrapParent(err)
	}
	return err
}
