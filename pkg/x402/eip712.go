package x402

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

const transferWithAuthorizationType = "TransferWithAuthorization"

var transferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	transferWithAuthorizationType: {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// HashTransferWithAuthorization computes the EIP-712 digest of an
// authorization bound to the network's asset signing domain:
//
//	keccak256(0x19 0x01 || domainSeparator || structHash)
func HashTransferWithAuthorization(auth *TransferAuthorization, network Network) ([]byte, error) {
	nonce, err := hexutil.Decode(auth.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "invalid nonce")
	}

	typedData := apitypes.TypedData{
		Types:       transferWithAuthorizationTypes,
		PrimaryType: transferWithAuthorizationType,
		Domain: apitypes.TypedDataDomain{
			Name:              network.Asset.Name,
			Version:           network.Asset.Version,
			ChainId:           (*math.HexOrDecimal256)(network.ChainId),
			VerifyingContract: network.Asset.Address,
		},
		Message: apitypes.TypedDataMessage{
			"from":        common.HexToAddress(auth.From).Hex(),
			"to":          common.HexToAddress(auth.To).Hex(),
			"value":       auth.Value.Int(),
			"validAfter":  auth.ValidAfter.Int(),
			"validBefore": auth.ValidBefore.Int(),
			"nonce":       nonce,
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash domain")
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash struct")
	}

	return crypto.Keccak256([]byte{0x19, 0x01}, domainSeparator, structHash), nil
}

// RecoverSigner recovers the address that produced a 65-byte [R || S || V]
// signature over digest. V may be either 0/1 or 27/28.
func RecoverSigner(digest, signature []byte) (common.Address, error) {
	if len(signature) != signatureLength {
		return common.Address{}, errors.Errorf("invalid signature length: %d", len(signature))
	}

	normalized := make([]byte, signatureLength)
	copy(normalized, signature)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, errors.Errorf("invalid signature recovery id: %d", signature[64])
	}

	pubKey, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
