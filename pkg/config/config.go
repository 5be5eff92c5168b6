package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoValue  = errors.New("config: no value set")
	ErrShutdown = errors.New("config: used after shutdown")
)

// Config is an untyped source for one setting. Sources report ErrNoValue when
// nothing is set so callers can apply their default.
type Config interface {
	Get(ctx context.Context) (interface{}, error)
	Shutdown()
}

// Typed exposes a Config converted to T.
//
// Get never fails: it falls back to the default when unset, and to the last
// value it saw when the source errors. GetSafe surfaces that error.
type Typed[T any] interface {
	Get(ctx context.Context) T
	GetSafe(ctx context.Context) (T, error)
	Shutdown()
}

type (
	Bool     = Typed[bool]
	Duration = Typed[time.Duration]
	Float64  = Typed[float64]
	Uint64   = Typed[uint64]
	String   = Typed[string]
)
