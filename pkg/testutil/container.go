package testutil

import (
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	"github.com/code-payments/x402-resource-server/pkg/retry"
	"github.com/code-payments/x402-resource-server/pkg/retry/backoff"
)

const (
	containerTtl      = 2 * time.Minute
	readinessAttempts = 50
	readinessInterval = 500 * time.Millisecond
)

// Container is a throwaway docker container backing an integration test
type Container struct {
	pool     *dockertest.Pool
	resource *dockertest.Resource
}

// StartContainer runs image:tag and polls ready until it succeeds. Docker
// removes the container after a fixed TTL even when Close is never called.
func StartContainer(pool *dockertest.Pool, image, tag string, env []string, ready func(*Container) error) (*Container, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        tag,
		Env:        env,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error starting %s container", image)
	}

	// Expire never returns an error
	_ = resource.Expire(uint(containerTtl.Seconds()))

	c := &Container{
		pool:     pool,
		resource: resource,
	}

	_, err = retry.Retry(
		func() error {
			return ready(c)
		},
		retry.Limit(readinessAttempts),
		retry.Backoff(backoff.Constant(readinessInterval), readinessInterval),
	)
	if err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "timed out waiting for %s container", image)
	}
	return c, nil
}

// HostPort returns the host address mapped to a container port such as
// "5432/tcp"
func (c *Container) HostPort(port string) string {
	return c.resource.GetHostPort(port)
}

func (c *Container) Close() {
	_ = c.pool.Purge(c.resource)
}
