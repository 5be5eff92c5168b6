package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/metrics"
)

const (
	DefaultTimeout = 5 * time.Second

	confirmationEventName = "LedgerConfirmation"
)

// UnconfirmedReason describes why a reference could not be confirmed
type UnconfirmedReason string

const (
	ReasonUnknownNetwork  UnconfirmedReason = "unknown_network"
	ReasonNotFound        UnconfirmedReason = "not_found"
	ReasonReverted        UnconfirmedReason = "reverted"
	ReasonNetworkMismatch UnconfirmedReason = "network_mismatch"
	ReasonTimeout         UnconfirmedReason = "timeout"
	ReasonUnavailable     UnconfirmedReason = "unavailable"
)

// Confirmation is the result of checking a settlement reference. Anything
// short of positive proof of success is Unconfirmed.
type Confirmation struct {
	Confirmed   bool
	BlockNumber uint64
	Reason      UnconfirmedReason
}

func confirmed(blockNumber uint64) Confirmation {
	return Confirmation{Confirmed: true, BlockNumber: blockNumber}
}

func unconfirmed(reason UnconfirmedReason) Confirmation {
	return Confirmation{Reason: reason}
}

// Oracle confirms that settlement references exist, succeeded and belong to
// the expected network. It fails closed and never retries.
type Oracle struct {
	log     *logrus.Entry
	clients map[string]Client
	timeout time.Duration
}

// NewOracle returns an oracle over per-network ledger clients. Each call is
// bounded by timeout.
func NewOracle(clients map[string]Client, timeout time.Duration) *Oracle {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Oracle{
		log:     logrus.StandardLogger().WithField("type", "x402/ledger"),
		clients: clients,
		timeout: timeout,
	}
}

// Confirm checks the referenced transaction against expectedNetwork
func (o *Oracle) Confirm(ctx context.Context, reference, expectedNetwork string) Confirmation {
	tracer := metrics.TraceMethodCall(ctx, "x402/ledger", "Confirm")
	defer tracer.End()

	log := o.log.WithFields(logrus.Fields{
		"method":    "Confirm",
		"reference": reference,
		"network":   expectedNetwork,
	})

	start := time.Now()
	result := o.confirm(ctx, log, reference, expectedNetwork)

	metrics.RecordEvent(ctx, confirmationEventName, map[string]interface{}{
		"network":     expectedNetwork,
		"confirmed":   result.Confirmed,
		"reason":      string(result.Reason),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result
}

func (o *Oracle) confirm(ctx context.Context, log *logrus.Entry, reference, expectedNetwork string) Confirmation {
	client, ok := o.clients[expectedNetwork]
	if !ok {
		log.Warn("no ledger client configured for network")
		return unconfirmed(ReasonUnknownNetwork)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	outcome, err := client.GetTransactionOutcome(ctx, reference)
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		log.Info("transaction not found")
		return unconfirmed(ReasonNotFound)
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded):
		log.WithError(err).Warn("timed out fetching transaction outcome")
		return unconfirmed(ReasonTimeout)
	case err != nil:
		log.WithError(err).Warn("failure fetching transaction outcome")
		return unconfirmed(ReasonUnavailable)
	case outcome == nil:
		log.Warn("ledger returned no outcome")
		return unconfirmed(ReasonUnavailable)
	}

	if !outcome.Success {
		log.WithField("block", outcome.BlockNumber).Info("transaction reverted")
		return unconfirmed(ReasonReverted)
	}

	if outcome.Network != expectedNetwork {
		log.WithField("actual_network", outcome.Network).Info("transaction is on a different network")
		return unconfirmed(ReasonNetworkMismatch)
	}

	return confirmed(outcome.BlockNumber)
}
