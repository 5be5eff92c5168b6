package replay

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
	"github.com/code-payments/x402-resource-server/pkg/metrics"
)

// ReserveResult is the outcome of attempting to consume an authorization
type ReserveResult uint8

const (
	Reserved ReserveResult = iota + 1
	AlreadyConsumed
)

func (r ReserveResult) String() string {
	switch r {
	case Reserved:
		return "reserved"
	case AlreadyConsumed:
		return "already_consumed"
	}
	return "unknown"
}

// Reservation describes the authorization being consumed
type Reservation struct {
	Key       string
	Kind      authorization.Kind
	SubjectId string
	// Defaults to the status implied by Kind
	Status    authorization.Status
	Payer     string
	Amount    uint64
	Network   string
}

// Guard prevents any payment authorization from being consumed twice. Every
// reservation is a single atomic insert-if-absent against the store, so
// concurrent reservations of the same key race on the store and exactly one
// wins.
type Guard struct {
	log   *logrus.Entry
	store authorization.Store
}

func NewGuard(store authorization.Store) *Guard {
	return &Guard{
		log:   logrus.StandardLogger().WithField("type", "x402/replay"),
		store: store,
	}
}

// Reserve durably consumes the authorization key. An error means the outcome
// is unknown and the caller must not settle.
func (g *Guard) Reserve(ctx context.Context, reservation Reservation) (ReserveResult, error) {
	tracer := metrics.TraceMethodCall(ctx, "x402/replay", "Reserve")
	defer tracer.End()

	log := g.log.WithFields(logrus.Fields{
		"method":  "Reserve",
		"key":     reservation.Key,
		"subject": reservation.SubjectId,
	})

	if reservation.Status == authorization.StatusUnknown {
		reservation.Status = statusForKind(reservation.Kind)
	}

	record := &authorization.Record{
		Key:       reservation.Key,
		Kind:      reservation.Kind,
		SubjectId: reservation.SubjectId,
		Payer:     reservation.Payer,
		Amount:    reservation.Amount,
		Network:   reservation.Network,
		Status:    reservation.Status,
	}

	err := g.store.Put(ctx, record)
	switch err {
	case nil:
		log.WithField("record_id", record.Id).Debug("authorization reserved")
		return Reserved, nil
	case authorization.ErrAlreadyExists:
		log.Info("authorization already consumed")
		return AlreadyConsumed, nil
	default:
		tracer.OnError(err)
		log.WithError(err).Warn("failure reserving authorization")
		return 0, errors.Wrap(err, "error reserving authorization")
	}
}

func statusForKind(kind authorization.Kind) authorization.Status {
	switch kind {
	case authorization.KindNonce:
		return authorization.StatusVerified
	case authorization.KindReference:
		return authorization.StatusLedgerConfirmed
	}
	return authorization.StatusUnknown
}
