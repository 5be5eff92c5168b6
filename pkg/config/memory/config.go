package memory

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/code-payments/x402-resource-server/pkg/config"
)

var errInduced = errors.New("memory config: induced error")

type state struct {
	value    interface{}
	err      error
	shutdown bool
}

// Config is an in memory config.Config for tests. Its value can be swapped
// and errors induced while it is in use.
type Config struct {
	state atomic.Pointer[state]
}

// NewConfig returns a config holding value. A nil value is reported as
// config.ErrNoValue.
func NewConfig(value interface{}) *Config {
	c := &Config{}
	c.state.Store(&state{value: value})
	return c
}

// Get implements Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	s := c.state.Load()
	if s.shutdown {
		return nil, config.ErrShutdown
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.value == nil {
		return nil, config.ErrNoValue
	}
	return s.value, nil
}

// Shutdown implements Config.Shutdown
func (c *Config) Shutdown() {
	c.update(func(s *state) { s.shutdown = true })
}

func (c *Config) SetValue(value interface{}) {
	c.update(func(s *state) { s.value = value })
}

func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors fails every Get until StopInducingErrors is called
func (c *Config) InduceErrors() {
	c.update(func(s *state) { s.err = errInduced })
}

func (c *Config) StopInducingErrors() {
	c.update(func(s *state) { s.err = nil })
}

func (c *Config) update(fn func(s *state)) {
	for {
		old := c.state.Load()
		next := *old
		fn(&next)
		if c.state.CompareAndSwap(old, &next) {
			return
		}
	}
}
