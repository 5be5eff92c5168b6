package pg

import (
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

// Instrumented pgx driver registered by nrpgx
const driverName = "nrpgx"

// Config holds connection settings for the replay store database
type Config struct {
	User               string
	Host               string
	Password           string
	Port               string
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int
}

// NewWithAwsIam opens a connection pool authenticated with an RDS IAM token.
// Only provisioned Aurora clusters support IAM authentication.
func NewWithAwsIam(cfg Config, awsConfig aws.Config) (*sql.DB, error) {
	rdsClient := rds.New(awsConfig)

	endpoint := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	authToken, err := rdsutils.BuildAuthToken(endpoint, rdsClient.Region, cfg.User, rdsClient.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "error building rds auth token")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.User, authToken, cfg.DbName,
	)
	return open(dsn, cfg)
}

// NewWithUsernameAndPassword opens a connection pool using password authentication
func NewWithUsernameAndPassword(cfg Config) (*sql.DB, error) {
	// TODO: enable SSL once the RDS CA bundle is shipped with the image
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DbName,
	)
	return open(dsn, cfg)
}

func open(dsn string, cfg Config) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening db")
	}

	if cfg.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error pinging db")
	}
	return db, nil
}
