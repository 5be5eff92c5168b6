package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
	"github.com/code-payments/x402-resource-server/pkg/discovery"
	"github.com/code-payments/x402-resource-server/pkg/metrics"
	"github.com/code-payments/x402-resource-server/pkg/pointer"
	"github.com/code-payments/x402-resource-server/pkg/resource"
	"github.com/code-payments/x402-resource-server/pkg/x402"
	"github.com/code-payments/x402-resource-server/pkg/x402/ledger"
	"github.com/code-payments/x402-resource-server/pkg/x402/replay"
	"github.com/code-payments/x402-resource-server/pkg/x402/settlement"
)

// LedgerOracle confirms ledger references presented as payment proofs
type LedgerOracle interface {
	Confirm(ctx context.Context, reference, expectedNetwork string) ledger.Confirmation
}

// PaidRequest is a single call to a paid resource
type PaidRequest struct {
	RequestId  string
	ResourceId string
	Body       []byte

	// Proof is the raw payment header value, if any
	Proof string
}

// Response is the result of handling a paid request. Outcome and Reason are
// internal and never serialized.
type Response struct {
	StatusCode int
	Body       interface{}
	Headers    map[string]string

	Outcome Outcome `json:"-"`
	Reason  string  `json:"-"`
}

// Handler gates resources behind x402 payments. A request moves through
// verification, reservation of its authorization key and settlement before
// the resource's response is generated. A receipt is only ever issued after
// the reservation succeeded.
type Handler struct {
	log  *logrus.Entry
	conf *conf

	registry *resource.Registry
	terms    discovery.Provider
	networks x402.Networks
	verifier *x402.Verifier
	guard    *replay.Guard
	oracle   LedgerOracle

	authorizationExecutor settlement.Executor
	referenceExecutor     settlement.Executor

	now func() time.Time
}

// NewHandler returns a handler for the resources in registry. A nil oracle
// rejects all ledger reference proofs.
func NewHandler(
	registry *resource.Registry,
	terms discovery.Provider,
	networks x402.Networks,
	guard *replay.Guard,
	oracle LedgerOracle,
	executor settlement.Executor,
	configProvider ConfigProvider,
) *Handler {
	return &Handler{
		log:                   logrus.StandardLogger().WithField("type", "x402/server/handler"),
		conf:                  configProvider(),
		registry:              registry,
		terms:                 terms,
		networks:              networks,
		verifier:              x402.NewVerifier(networks),
		guard:                 guard,
		oracle:                oracle,
		authorizationExecutor: executor,
		referenceExecutor:     settlement.NewReferenceExecutor(),
		now:                   time.Now,
	}
}

// Handle processes a paid request end to end
func (h *Handler) Handle(ctx context.Context, req *PaidRequest) *Response {
	tracer := metrics.TraceMethodCall(ctx, "x402/server/handler", "Handle")
	defer tracer.End()

	log := h.log.WithFields(logrus.Fields{
		"method":     "Handle",
		"resource":   req.ResourceId,
		"request_id": req.RequestId,
	})

	start := time.Now()
	resp := h.handle(ctx, log, req)
	latency := time.Since(start)

	tracer.AddAttributes(map[string]interface{}{
		"outcome": string(resp.Outcome),
		"reason":  resp.Reason,
	})
	recordPaidRequestEvent(ctx, req.ResourceId, resp, latency)

	log = log.WithFields(logrus.Fields{
		"outcome":     resp.Outcome,
		"reason":      resp.Reason,
		"status_code": resp.StatusCode,
		"latency":     latency,
	})
	switch resp.Outcome {
	case OutcomeFulfilled, OutcomeMissingPayment:
		log.Debug("request handled")
	case OutcomeSettlementFailure, OutcomeInternalError:
		log.Warn("request failed")
	default:
		log.Info("request rejected")
	}

	return resp
}

func (h *Handler) handle(ctx context.Context, log *logrus.Entry, req *PaidRequest) *Response {
	res, err := h.registry.Get(req.ResourceId)
	if err == resource.ErrResourceNotFound {
		return newMalformedRequest(nil, http.StatusNotFound, codeMethodNotFound, resourceNotFoundMessage, nil, "unknown resource")
	} else if err != nil {
		log.WithError(err).Warn("failure getting resource")
		return newRejection(nil, OutcomeInternalError, "resource lookup failed")
	}

	var rpcReq RpcRequest
	if err := json.Unmarshal(req.Body, &rpcReq); err != nil {
		return newMalformedRequest(nil, http.StatusBadRequest, codeParseError, parseErrorMessage, nil, "body is not json")
	}

	id := rpcReq.Id
	if !rpcReq.Validate() {
		return newMalformedRequest(id, http.StatusBadRequest, codeInvalidRequest, invalidRequestMessage, nil, "invalid envelope")
	}

	params, err := h.registry.ValidateParams(res.Id(), rpcReq.Params)
	if err != nil {
		var data interface{}
		if validationErr, ok := err.(*resource.ValidationError); ok {
			data = validationErr.Errors
		}
		return newMalformedRequest(id, http.StatusBadRequest, codeInvalidParams, invalidParamsMessage, data, "invalid params")
	}

	terms, err := h.terms.GetPaymentTerms(ctx, res.Id())
	if err != nil {
		log.WithError(err).Warn("failure getting payment terms")
		return newRejection(id, OutcomeInternalError, "payment terms unavailable")
	}

	requirement, err := terms.Requirement(h.networks)
	if err != nil {
		log.WithError(err).Warn("failure building payment requirement")
		return newRejection(id, OutcomeInternalError, "invalid payment terms")
	}

	// AwaitingPayment
	proof := strings.TrimSpace(req.Proof)
	if len(proof) == 0 {
		return &Response{
			StatusCode: http.StatusPaymentRequired,
			Body:       x402.NewChallenge(requirement),
			Outcome:    OutcomeMissingPayment,
		}
	}

	// Verifying
	var reservation replay.Reservation
	var pending settlement.Settlement
	var executor settlement.Executor
	if reference, ok := x402.ParseSettlementReference(proof); ok {
		if h.oracle == nil {
			return newRejection(id, OutcomeLedgerUnavailable, "no ledger oracle configured")
		}

		confirmation := h.oracle.Confirm(ctx, reference, requirement.Network)
		if !confirmation.Confirmed {
			outcome := OutcomeInvalidPayment
			switch confirmation.Reason {
			case ledger.ReasonTimeout, ledger.ReasonUnavailable, ledger.ReasonUnknownNetwork:
				outcome = OutcomeLedgerUnavailable
			}
			return newRejection(id, outcome, string(confirmation.Reason))
		}

		reservation = replay.Reservation{
			Key:       authorization.ReferenceKey(reference),
			Kind:      authorization.KindReference,
			SubjectId: res.Id(),
			Amount:    requirement.Amount,
			Network:   requirement.Network,
		}
		pending = settlement.Settlement{
			Requirement: requirement,
			Reference:   reference,
		}
		executor = h.referenceExecutor
	} else {
		verdict := h.verifier.Verify(proof, requirement, h.now())
		if !verdict.Verified {
			return newRejection(id, OutcomeInvalidPayment, string(verdict.Reason))
		}

		auth, err := x402.DecodeAuthorization(proof)
		if err != nil {
			log.WithError(err).Warn("failure decoding verified authorization")
			return newRejection(id, OutcomeInternalError, "decode failed after verification")
		}

		reservation = replay.Reservation{
			Key:       verdict.Key,
			Kind:      authorization.KindNonce,
			SubjectId: res.Id(),
			Payer:     verdict.Payer,
			Amount:    requirement.Amount,
			Network:   requirement.Network,
		}
		pending = settlement.Settlement{
			Requirement:   requirement,
			Authorization: auth,
		}
		executor = h.authorizationExecutor
	}

	log = log.WithField("key", reservation.Key)

	// Reserving
	reserveResult, err := h.guard.Reserve(ctx, reservation)
	if err != nil {
		log.WithError(err).Warn("failure reserving authorization")
		return newRejection(id, OutcomeInternalError, "reservation failed")
	} else if reserveResult == replay.AlreadyConsumed {
		return newRejection(id, OutcomeReplayDetected, "authorization already consumed")
	}

	// Settling. The key is already consumed, so a caller disconnecting must not
	// abort settlement. Only the settlement timeout bounds it.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.conf.settlementTimeout.Get(ctx))
	settlementReference, err := executor.Settle(settleCtx, pending)
	cancel()
	if err != nil {
		// The key stays reserved, so this payment can never be retried
		log.WithError(err).Error("settlement failed after authorization was reserved")
		recordSettlementAnomalyEvent(ctx, res.Id(), reservation.Key, err)
		return newRejection(id, OutcomeSettlementFailure, "settlement failed")
	}
	log = log.WithField("settlement_reference", pointer.Value(settlementReference))

	if reservation.Kind == authorization.KindNonce && settlementReference != nil {
		h.consumeSettlementReference(context.WithoutCancel(ctx), log, reservation, *settlementReference)
	}

	receipt := x402.NewReceipt(requirement, settlementReference, h.now())
	encodedReceipt, err := x402.EncodeReceipt(receipt)
	if err != nil {
		log.WithError(err).Error("failure encoding receipt for settled payment")
		recordSettlementAnomalyEvent(ctx, res.Id(), reservation.Key, err)
		return newRejection(id, OutcomeInternalError, "receipt encoding failed")
	}
	headers := map[string]string{
		x402.PaymentResponseHeaderName: encodedReceipt,
	}

	// Fulfilled
	result, err := res.GenerateResponse(ctx, params)
	if err != nil {
		log.WithError(err).Warn("failure generating response for settled payment")
		resp := newRejection(id, OutcomeInternalError, "response generation failed")
		resp.Headers = headers
		return resp
	}

	return &Response{
		StatusCode: http.StatusOK,
		Body:       newRpcResult(id, result),
		Headers:    headers,
		Outcome:    OutcomeFulfilled,
	}
}

// consumeSettlementReference marks the transaction that settled an
// authorization as spent, so its hash cannot be replayed as a ledger
// reference proof. Failures are logged and the receipt is still issued.
func (h *Handler) consumeSettlementReference(ctx context.Context, log *logrus.Entry, settled replay.Reservation, reference string) {
	result, err := h.guard.Reserve(ctx, replay.Reservation{
		Key:       authorization.ReferenceKey(reference),
		Kind:      authorization.KindReference,
		Status:    authorization.StatusSettled,
		SubjectId: settled.SubjectId,
		Payer:     settled.Payer,
		Amount:    settled.Amount,
		Network:   settled.Network,
	})
	if err != nil {
		log.WithError(err).Warn("failure consuming settlement reference")
		return
	}
	if result == replay.AlreadyConsumed {
		log.Warn("settlement reference was already consumed")
	}
}
