// Package x402 implements the server side of the x402 v2 payment protocol:
// payment challenges, EIP-3009 authorization verification and receipts.
package x402

const (
	// Version is the only protocol version accepted and emitted
	Version = "2"

	// SchemeExact requires the authorized value to equal the price exactly
	SchemeExact = "exact"

	// PaymentHeaderName carries the caller's proof of payment
	PaymentHeaderName = "X-PAYMENT"

	// PaymentResponseHeaderName carries the settlement receipt
	PaymentResponseHeaderName = "X-PAYMENT-RESPONSE"
)
