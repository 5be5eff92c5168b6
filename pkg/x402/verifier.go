package x402

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
)

// RejectReason describes which verification check failed. Reasons are for
// logs and metrics only and are never returned to callers.
type RejectReason string

const (
	ReasonMalformedProof     RejectReason = "malformed_proof"
	ReasonUnsupportedVersion RejectReason = "unsupported_version"
	ReasonNetworkMismatch    RejectReason = "network_mismatch"
	ReasonUnknownNetwork     RejectReason = "unknown_network"
	ReasonRecipientMismatch  RejectReason = "recipient_mismatch"
	ReasonAmountMismatch     RejectReason = "amount_mismatch"
	ReasonNotYetValid        RejectReason = "not_yet_valid"
	ReasonExpired            RejectReason = "expired"
	ReasonInvalidSignature   RejectReason = "invalid_signature"
)

// Verdict is the result of verifying a payment authorization. When Verified
// is set, Payer and Key are populated. Otherwise Reason is.
type Verdict struct {
	Verified bool

	Payer string
	Key   string

	Reason RejectReason
}

func verified(payer common.Address, key string) Verdict {
	return Verdict{
		Verified: true,
		Payer:    payer.Hex(),
		Key:      key,
	}
}

func rejected(reason RejectReason) Verdict {
	return Verdict{
		Reason: reason,
	}
}

// Verifier checks EIP-3009 authorizations against payment requirements. It
// holds no mutable state.
type Verifier struct {
	networks Networks
}

func NewVerifier(networks Networks) *Verifier {
	return &Verifier{
		networks: networks,
	}
}

// Verify decodes the payment header and checks, in order: version, network,
// recipient, exact value, validity window (inclusive on both ends) and
// finally that the signature recovers to the declared payer. The first
// failing check determines the rejection reason.
func (v *Verifier) Verify(header string, req PaymentRequirement, now time.Time) Verdict {
	auth, err := DecodeAuthorization(header)
	if err != nil {
		return rejected(ReasonMalformedProof)
	}

	if auth.Version != Version {
		return rejected(ReasonUnsupportedVersion)
	}

	// The network is optional on the wire. The signature binds to the
	// requirement's chain id either way.
	if len(auth.Network) > 0 && auth.Network != req.Network {
		return rejected(ReasonNetworkMismatch)
	}

	if common.HexToAddress(auth.To) != common.HexToAddress(req.Recipient) {
		return rejected(ReasonRecipientMismatch)
	}

	if auth.Value.Int().Cmp(new(big.Int).SetUint64(req.Amount)) != 0 {
		return rejected(ReasonAmountMismatch)
	}

	unixNow := big.NewInt(now.Unix())
	if unixNow.Cmp(auth.ValidAfter.Int()) < 0 {
		return rejected(ReasonNotYetValid)
	}
	if unixNow.Cmp(auth.ValidBefore.Int()) > 0 {
		return rejected(ReasonExpired)
	}

	network, err := v.networks.Get(req.Network)
	if err != nil {
		return rejected(ReasonUnknownNetwork)
	}

	digest, err := HashTransferWithAuthorization(auth, network)
	if err != nil {
		return rejected(ReasonMalformedProof)
	}

	signature, err := hexutil.Decode(auth.Signature)
	if err != nil {
		return rejected(ReasonMalformedProof)
	}

	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return rejected(ReasonInvalidSignature)
	}

	payer := common.HexToAddress(auth.From)
	if signer != payer {
		return rejected(ReasonInvalidSignature)
	}

	return verified(payer, authorization.NonceKey(payer.Hex(), auth.Nonce))
}
