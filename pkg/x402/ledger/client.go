package ledger

import (
	"context"
	"errors"
)

// ErrTransactionNotFound indicates the ledger has no record of the transaction
var ErrTransactionNotFound = errors.New("transaction not found")

// Outcome is what a ledger reports about a transaction
type Outcome struct {
	Success     bool
	Network     string
	BlockNumber uint64
}

// Client reads transaction outcomes from a ledger. It is read-only.
type Client interface {
	// GetTransactionOutcome returns ErrTransactionNotFound when the reference
	// does not resolve
	GetTransactionOutcome(ctx context.Context, reference string) (*Outcome, error)
}
