package x402

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignTransferWithAuthorization signs the authorization in place with the
// payer's key. Intended for clients and tests, since the server never holds
// payer keys.
func SignTransferWithAuthorization(auth *TransferAuthorization, network Network, key *ecdsa.PrivateKey) error {
	digest, err := HashTransferWithAuthorization(auth, network)
	if err != nil {
		return err
	}

	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return errors.Wrap(err, "failed to sign authorization")
	}
	signature[64] += 27

	auth.Signature = hexutil.Encode(signature)
	return nil
}
