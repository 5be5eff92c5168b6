package settlement

import (
	"context"

	"github.com/code-payments/x402-resource-server/pkg/pointer"
	"github.com/code-payments/x402-resource-server/pkg/x402"
)

type referenceExecutor struct{}

// NewReferenceExecutor returns an executor for payments proven by a ledger
// reference. Those transactions already settled, so the reference is returned
// as is.
func NewReferenceExecutor() Executor {
	return &referenceExecutor{}
}

// Settle implements Executor.Settle
func (e *referenceExecutor) Settle(_ context.Context, settlement Settlement) (*string, error) {
	normalized, ok := x402.ParseSettlementReference(settlement.Reference)
	if !ok {
		return nil, ErrInvalidSettlement
	}
	return pointer.To(normalized), nil
}
