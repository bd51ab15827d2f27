// internal/adapters/db/errors.go
package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// Postgres SQLSTATE codes the adapters translate
const (
	codeLockNotAvailable = "55P03"
	codeUniqueViolation  = "23505"
	codeCheckViolation   = "23514"
	codeNumericOverflow  = "22003"
)

// mapError translates driver errors into domain kinds. Anything it does not
// recognise is wrapped with msg and left for the service to classify.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable:
			return &domain.SaleError{Kind: domain.ErrLockTimeout, Line: -1, Message: "row lock wait exceeded", Err: err}
		case codeUniqueViolation, codeCheckViolation, codeNumericOverflow:
			return fmt.Errorf("%s: %w: %s", msg, domain.ErrValidation, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
