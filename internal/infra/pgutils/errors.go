package pgutils

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories translate into domain errors.
const (
	CodeUniqueViolation   = "23505"
	CodeCheckViolation    = "23514"
	CodeNumericOutOfRange = "22003"
)

// HasCode reports whether err carries a Postgres error with the given code.
func HasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}

	return false
}
