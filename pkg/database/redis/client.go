package rdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Config holds connection settings for the redis replay store
type Config struct {
	Address     string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// New returns a connected redis client. The connection is verified with PING.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "error pinging redis at %s", cfg.Address)
	}
	return client, nil
}
