package server

import (
	"encoding/json"
	"net/http"
)

// Outcome classifies how a request was resolved. Outcomes are logged and
// counted but never exposed to callers.
type Outcome string

const (
	OutcomeFulfilled         Outcome = "fulfilled"
	OutcomeMalformedRequest  Outcome = "malformed_request"
	OutcomeMissingPayment    Outcome = "missing_payment"
	OutcomeInvalidPayment    Outcome = "invalid_payment"
	OutcomeReplayDetected    Outcome = "replay_detected"
	OutcomeLedgerUnavailable Outcome = "ledger_unavailable"
	OutcomeSettlementFailure Outcome = "settlement_failure"
	OutcomeInternalError     Outcome = "internal_error"
	OutcomeRateLimited       Outcome = "rate_limited"
)

const (
	paymentVerificationFailedMessage = "Payment verification failed"
	paymentExecutionFailedMessage    = "Payment execution failed"
	internalErrorMessage             = "Internal error"
	rateLimitedMessage               = "Too many requests"
	resourceNotFoundMessage          = "Resource not found"
	parseErrorMessage                = "Parse error"
	invalidRequestMessage            = `Invalid Request: Expected JSON-RPC 2.0 with method "message/send"`
	invalidParamsMessage             = "Invalid params"
)

// newRejection builds the caller facing response for a failed request.
// Every payment failure looks the same from the outside regardless of which
// check failed.
func newRejection(id json.RawMessage, outcome Outcome, reason string) *Response {
	var statusCode, code int
	var message string
	switch outcome {
	case OutcomeInvalidPayment, OutcomeReplayDetected, OutcomeLedgerUnavailable:
		statusCode, code, message = http.StatusForbidden, http.StatusForbidden, paymentVerificationFailedMessage
	case OutcomeSettlementFailure:
		statusCode, code, message = http.StatusInternalServerError, http.StatusInternalServerError, paymentExecutionFailedMessage
	case OutcomeRateLimited:
		statusCode, code, message = http.StatusTooManyRequests, http.StatusTooManyRequests, rateLimitedMessage
	default:
		outcome = OutcomeInternalError
		statusCode, code, message = http.StatusInternalServerError, codeInternalError, internalErrorMessage
	}

	return &Response{
		StatusCode: statusCode,
		Body:       newRpcError(id, code, message, nil),
		Outcome:    outcome,
		Reason:     reason,
	}
}

func newMalformedRequest(id json.RawMessage, statusCode, code int, message string, data interface{}, reason string) *Response {
	return &Response{
		StatusCode: statusCode,
		Body:       newRpcError(id, code, message, data),
		Outcome:    OutcomeMalformedRequest,
		Reason:     reason,
	}
}
