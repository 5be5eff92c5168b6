package x402

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

const (
	nonceLength     = 32
	signatureLength = 65
)

var (
	ErrMalformedProof = errors.New("malformed payment proof")

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	settlementReferencePattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

// Uint256 is an unsigned 256-bit integer that decodes from either a JSON
// number or a decimal string, and always encodes as a decimal string.
type Uint256 struct {
	v *big.Int
}

func Uint256FromUint64(v uint64) Uint256 {
	return Uint256{v: new(big.Int).SetUint64(v)}
}

// Int returns a copy of the value, or nil when unset
func (u Uint256) Int() *big.Int {
	if u.v == nil {
		return nil
	}
	return new(big.Int).Set(u.v)
}

func (u Uint256) IsSet() bool {
	return u.v != nil
}

func (u Uint256) String() string {
	if u.v == nil {
		return ""
	}
	return u.v.String()
}

func (u Uint256) MarshalJSON() ([]byte, error) {
	if u.v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(u.v.String())
}

func (u *Uint256) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		u.v = nil
		return nil
	}

	raw := string(bytes.Trim(data, `"`))
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return errors.Errorf("invalid integer: %s", raw)
	}
	if v.Sign() < 0 || v.Cmp(maxUint256) > 0 {
		return errors.Errorf("integer out of uint256 range: %s", raw)
	}

	u.v = v
	return nil
}

// TransferAuthorization is a caller-signed EIP-3009 TransferWithAuthorization,
// as carried in the payment header
type TransferAuthorization struct {
	Version     string  `json:"version"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Value       Uint256 `json:"value"`
	ValidAfter  Uint256 `json:"validAfter"`
	ValidBefore Uint256 `json:"validBefore"`
	Nonce       string  `json:"nonce"`
	Signature   string  `json:"signature"`
	Network     string  `json:"network,omitempty"`
}

// DecodeAuthorization decodes a base64 JSON payment header. Only the shape of
// the authorization is checked here, not its validity.
func DecodeAuthorization(header string) (*TransferAuthorization, error) {
	header = strings.TrimSpace(header)

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(header)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedProof, "invalid base64")
		}
	}

	var auth TransferAuthorization
	if err := json.Unmarshal(decoded, &auth); err != nil {
		return nil, errors.Wrapf(ErrMalformedProof, "invalid json: %v", err)
	}

	if err := auth.validateShape(); err != nil {
		return nil, err
	}
	return &auth, nil
}

// EncodeAuthorization encodes an authorization for use as a payment header
func EncodeAuthorization(auth *TransferAuthorization) (string, error) {
	serialized, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(serialized), nil
}

func (a *TransferAuthorization) validateShape() error {
	if !common.IsHexAddress(a.From) {
		return errors.Wrap(ErrMalformedProof, "invalid from address")
	}
	if !common.IsHexAddress(a.To) {
		return errors.Wrap(ErrMalformedProof, "invalid to address")
	}
	if !a.Value.IsSet() || !a.ValidAfter.IsSet() || !a.ValidBefore.IsSet() {
		return errors.Wrap(ErrMalformedProof, "value and validity window are required")
	}

	nonce, err := hexutil.Decode(a.Nonce)
	if err != nil || len(nonce) != nonceLength {
		return errors.Wrap(ErrMalformedProof, "nonce must be 32 bytes of 0x-prefixed hex")
	}

	signature, err := hexutil.Decode(a.Signature)
	if err != nil || len(signature) != signatureLength {
		return errors.Wrap(ErrMalformedProof, "signature must be 65 bytes of 0x-prefixed hex")
	}

	return nil
}

// ParseSettlementReference reports whether the payment header is a bare
// transaction hash, and returns it normalized to lowercase 0x-prefixed hex.
func ParseSettlementReference(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !settlementReferencePattern.MatchString(header) {
		return "", false
	}

	header = strings.ToLower(header)
	if !strings.HasPrefix(header, "0x") {
		header = "0x" + header
	}
	return header, true
}
