package settlement

import (
	"context"
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/pointer"
)

type simulatedExecutor struct {
	log *logrus.Entry
}

// NewSimulatedExecutor returns an executor that pretends to settle and hands
// back a random transaction reference. It must not be used in production.
func NewSimulatedExecutor() Executor {
	return &simulatedExecutor{
		log: logrus.StandardLogger().WithField("type", "x402/settlement/simulated"),
	}
}

// Settle implements Executor.Settle
func (e *simulatedExecutor) Settle(_ context.Context, settlement Settlement) (*string, error) {
	if settlement.Authorization == nil {
		return nil, ErrInvalidSettlement
	}

	var buffer [32]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return nil, err
	}

	reference := hexutil.Encode(buffer[:])
	e.log.WithFields(logrus.Fields{
		"method":    "Settle",
		"payer":     settlement.Authorization.From,
		"reference": reference,
	}).Debug("simulated settlement")
	return pointer.To(reference), nil
}
