package pg

import (
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// CheckNoRows returns outErr when the query matched no rows, and inErr
// otherwise
func CheckNoRows(inErr, outErr error) error {
	return translate(inErr, outErr, func(err error) bool {
		return errors.Is(err, sql.ErrNoRows)
	})
}

// CheckUniqueViolation returns outErr when the statement violated a unique
// constraint, and inErr otherwise
func CheckUniqueViolation(inErr, outErr error) error {
	return translate(inErr, outErr, IsUniqueViolation)
}

// IsUniqueViolation reports whether err carries a postgres unique_violation
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation
}

func translate(inErr, outErr error, match func(error) bool) error {
	if inErr != nil && match(inErr) {
		return outErr
	}
	return inErr
}
