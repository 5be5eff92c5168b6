package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/config"
	"github.com/code-payments/x402-resource-server/pkg/config/wrapper"
)

type conf struct {
	name string
}

// NewConfig returns a config backed by an environment variable. Names are
// upper cased, and the variable is looked up on every Get so changes made
// after startup are observed.
func NewConfig(name string) config.Config {
	return &conf{
		name: strings.ToUpper(name),
	}
}

// Get implements Config.Get
func (c *conf) Get(_ context.Context) (interface{}, error) {
	val, ok := os.LookupEnv(c.name)
	if !ok || len(val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(val), nil
}

// Shutdown implements Config.Shutdown
func (c *conf) Shutdown() {}

func NewBoolConfig(name string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(name), defaultValue)
}

func NewDurationConfig(name string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(name), defaultValue)
}

func NewFloat64Config(name string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(name), defaultValue)
}

func NewUint64Config(name string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(name), defaultValue)
}

func NewStringConfig(name string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(name), defaultValue)
}
