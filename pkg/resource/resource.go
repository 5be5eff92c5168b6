package resource

import (
	"context"
	"encoding/json"
)

// Metadata describes a resource in its agent card
type Metadata struct {
	AgentId     string
	Name        string
	Description string
	Category    string
	Version     string
}

// PriceInfo is the static price of a single call, in the payment asset's
// smallest unit
type PriceInfo struct {
	Amount uint64
}

// Resource is a paid endpoint served behind an x402 payment gate. A resource
// only produces a response once payment for the call has been reserved and
// settled.
type Resource interface {
	// Id is the path segment the resource is served under
	Id() string

	Metadata() Metadata

	PriceInfo() PriceInfo

	// ParamsSchema is a JSON schema the request params must satisfy
	ParamsSchema() string

	// GenerateResponse produces the JSON-RPC result for already validated params
	GenerateResponse(ctx context.Context, params json.RawMessage) (interface{}, error)
}
