package test

import (
	"database/sql"
	"fmt"

	"github.com/ory/dockertest/v3"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/x402-resource-server/pkg/testutil"
)

const (
	user     = "localtest"
	password = "localpassword"
	dbname   = "testdb"
)

// StartPostgresDB runs a postgres 14 container and returns a connection to
// an empty database in it
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	container, err := testutil.StartContainer(
		pool,
		"postgres",
		"14.10",
		[]string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
		func(c *testutil.Container) error {
			url := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, c.HostPort("5432/tcp"), dbname)

			candidate, err := sql.Open("pgx", url)
			if err != nil {
				return err
			}
			if err := candidate.Ping(); err != nil {
				candidate.Close()
				return err
			}
			db = candidate
			return nil
		},
	)
	if err != nil {
		return nil, func() {}, err
	}
	return db, container.Close, nil
}
