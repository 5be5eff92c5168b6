package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ExecuteInTx runs fn inside a transaction and commits when fn returns nil.
// sql.LevelDefault resolves to read committed.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}

	if err := fn(tx); err != nil {
		// The connection is only returned to the pool after a rollback
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(err, "rollback failed (%v)", rollbackErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit(), "error committing transaction")
}
