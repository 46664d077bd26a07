package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the application reacts to.
const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsNoRows reports whether err is a query that returned no rows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ForeignKeyViolation returns the violated constraint name when err is a
// foreign key violation.
func ForeignKeyViolation(err error) (string, bool) {
	return constraintViolation(err, codeForeignKeyViolation)
}

// UniqueViolation returns the violated constraint name when err is a
// unique violation.
func UniqueViolation(err error) (string, bool) {
	return constraintViolation(err, codeUniqueViolation)
}

// CheckViolation returns the violated constraint name when err is a check
// constraint violation.
func CheckViolation(err error) (string, bool) {
	return constraintViolation(err, codeCheckViolation)
}

// IsRetryable reports whether the transaction failed because of a
// serialization failure or a deadlock and can be run again.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

func constraintViolation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
