package x402

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Receipt is returned to the caller as proof that settlement occurred
type Receipt struct {
	Version   string  `json:"version"`
	Reference *string `json:"txHash"`
	Amount    string  `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	Network   string  `json:"network"`
}

// NewReceipt builds a receipt for a settled requirement
func NewReceipt(req PaymentRequirement, reference *string, settledAt time.Time) Receipt {
	return Receipt{
		Version:   Version,
		Reference: reference,
		Amount:    strconv.FormatUint(req.Amount, 10),
		Timestamp: settledAt.Unix(),
		Network:   req.Network,
	}
}

// EncodeReceipt serializes a receipt for the payment response header
func EncodeReceipt(receipt Receipt) (string, error) {
	serialized, err := json.Marshal(receipt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(serialized), nil
}

// DecodeReceipt parses a payment response header
func DecodeReceipt(header string) (*Receipt, error) {
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64")
	}

	var receipt Receipt
	if err := json.Unmarshal(decoded, &receipt); err != nil {
		return nil, errors.Wrap(err, "invalid json")
	}
	return &receipt, nil
}
