package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
	pgutil "github.com/code-payments/x402-resource-server/pkg/database/postgres"
)

const (
	tableName = "x402__core_consumedauthorization"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Key  string `db:"key"`
	Kind uint8  `db:"kind"`

	SubjectId string         `db:"subject_id"`
	Payer     sql.NullString `db:"payer"`
	Amount    int64          `db:"amount"`
	Network   string         `db:"network"`

	Status uint8 `db:"status"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *authorization.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &model{
		Key:       obj.Key,
		Kind:      uint8(obj.Kind),
		SubjectId: obj.SubjectId,
		Payer: sql.NullString{
			Valid:  len(obj.Payer) > 0,
			String: obj.Payer,
		},
		Amount:    int64(obj.Amount),
		Network:   obj.Network,
		Status:    uint8(obj.Status),
		CreatedAt: createdAt,
	}, nil
}

func fromModel(obj *model) *authorization.Record {
	return &authorization.Record{
		Id:        uint64(obj.Id.Int64),
		Key:       obj.Key,
		Kind:      authorization.Kind(obj.Kind),
		SubjectId: obj.SubjectId,
		Payer:     obj.Payer.String,
		Amount:    uint64(obj.Amount),
		Network:   obj.Network,
		Status:    authorization.Status(obj.Status),
		CreatedAt: obj.CreatedAt.UTC(),
	}
}

// dbPut relies on the UNIQUE constraint on key, so concurrent inserts for the
// same key race on the database and exactly one succeeds.
func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(key, kind, subject_id, payer, amount, network, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, key, kind, subject_id, payer, amount, network, status, created_at`

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Key,
			m.Kind,
			m.SubjectId,
			m.Payer,
			m.Amount,
			m.Network,
			m.Status,
			m.CreatedAt,
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, authorization.ErrAlreadyExists)
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, key string) (*model, error) {
	res := &model{}

	query := `SELECT id, key, kind, subject_id, payer, amount, network, status, created_at FROM ` + tableName + `
		WHERE key = $1`

	err := db.GetContext(ctx, res, query, key)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, authorization.ErrNotFound)
	}
	return res, nil
}
