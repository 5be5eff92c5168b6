package test

import (
	"context"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"

	"github.com/code-payments/x402-resource-server/pkg/testutil"
)

// StartRedis runs a redis 7 container and returns a client connected to it
func StartRedis(pool *dockertest.Pool) (client *redis.Client, closeFunc func(), err error) {
	container, err := testutil.StartContainer(pool, "redis", "7.2", nil, func(c *testutil.Container) error {
		candidate := redis.NewClient(&redis.Options{
			Addr: c.HostPort("6379/tcp"),
		})
		if err := candidate.Ping(context.Background()).Err(); err != nil {
			candidate.Close()
			return err
		}
		client = candidate
		return nil
	})
	if err != nil {
		return nil, func() {}, err
	}
	return client, container.Close, nil
}
