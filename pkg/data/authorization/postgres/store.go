package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
)

type store struct {
	db *sqlx.DB
}

// New returns a postgres backed authorization.Store
func New(db *sql.DB) authorization.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements authorization.Store.Put
func (s *store) Put(ctx context.Context, record *authorization.Record) error {
	m, err := toModel(record)
	if err != nil {
		return err
	}

	if err := m.dbPut(ctx, s.db); err != nil {
		return err
	}

	fromModel(m).CopyTo(record)
	return nil
}

// Get implements authorization.Store.Get
func (s *store) Get(ctx context.Context, key string) (*authorization.Record, error) {
	m, err := dbGet(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	return fromModel(m), nil
}
