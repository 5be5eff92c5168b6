package authorization

import (
	"context"
	"errors"
)

var (
	ErrAlreadyExists = errors.New("authorization record already exists")
	ErrNotFound      = errors.New("no authorization record could be found")
)

// Store persists consumed authorization records. There is intentionally no
// update or delete operation.
type Store interface {
	// Put atomically inserts the record. ErrAlreadyExists is returned when a
	// record with the same key exists, in which case nothing is written.
	Put(ctx context.Context, record *Record) error

	// Get gets a record by its replay key
	Get(ctx context.Context, key string) (*Record, error)
}
