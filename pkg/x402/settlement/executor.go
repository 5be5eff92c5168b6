package settlement

import (
	"context"
	"errors"

	"github.com/code-payments/x402-resource-server/pkg/x402"
)

// Mode selects how verified authorizations are settled
type Mode string

const (
	ModeSimulated   Mode = "simulated"
	ModeFacilitator Mode = "facilitator"
)

var (
	// ErrSettlementRejected indicates the settlement was definitively refused
	ErrSettlementRejected = errors.New("settlement rejected")

	// ErrInvalidSettlement indicates the executor was given a settlement it
	// cannot act on
	ErrInvalidSettlement = errors.New("invalid settlement")
)

// Settlement is a reserved payment ready to be settled. Exactly one of
// Authorization or Reference is set.
type Settlement struct {
	Requirement   x402.PaymentRequirement
	Authorization *x402.TransferAuthorization
	Reference     string
}

// Executor moves funds for a reserved payment. It is only ever invoked after
// the payment's authorization key has been reserved, and returns the ledger
// reference of the settlement when one exists.
type Executor interface {
	Settle(ctx context.Context, settlement Settlement) (*string, error)
}

// ParseMode parses a configured settlement mode
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeSimulated, ModeFacilitator:
		return Mode(value), nil
	}
	return "", errors.New("unsupported settlement mode")
}
