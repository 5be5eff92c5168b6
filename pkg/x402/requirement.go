package x402

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// PaymentRequirement declares the terms a caller must satisfy for a single
// request. It is derived per request and never persisted.
type PaymentRequirement struct {
	Scheme    string
	Amount    uint64
	Asset     string
	Recipient string
	Network   string
}

// NewPaymentRequirement builds an exact payment requirement for a price on a
// configured network
func NewPaymentRequirement(network Network, recipient string, amount uint64) (PaymentRequirement, error) {
	req := PaymentRequirement{
		Scheme:    SchemeExact,
		Amount:    amount,
		Asset:     network.Asset.Address,
		Recipient: recipient,
		Network:   network.Id,
	}
	return req, req.Validate()
}

func (r PaymentRequirement) Validate() error {
	if r.Scheme != SchemeExact {
		return errors.Errorf("unsupported scheme: %s", r.Scheme)
	}
	if r.Amount == 0 {
		return errors.New("amount must be positive")
	}
	if !common.IsHexAddress(r.Asset) {
		return errors.New("invalid asset address")
	}
	if !common.IsHexAddress(r.Recipient) {
		return errors.New("invalid recipient address")
	}
	if len(r.Network) == 0 {
		return errors.New("network is required")
	}
	return nil
}

// Challenge is the HTTP 402 response body
type Challenge struct {
	Version         string `json:"version"`
	PaymentRequired bool   `json:"paymentRequired"`
	Amount          string `json:"amount"`
	Receiver        string `json:"receiver"`
	TokenAddress    string `json:"tokenAddress"`
	Network         string `json:"network"`
}

// NewChallenge declares the payment terms of a requirement
func NewChallenge(req PaymentRequirement) Challenge {
	return Challenge{
		Version:         Version,
		PaymentRequired: true,
		Amount:          strconv.FormatUint(req.Amount, 10),
		Receiver:        req.Recipient,
		TokenAddress:    req.Asset,
		Network:         req.Network,
	}
}
