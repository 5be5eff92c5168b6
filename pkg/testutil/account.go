package testutil

import (
	"crypto/ecdsa"
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Account is a throwaway EVM key pair for tests
type Account struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

func NewRandomAccount(t *testing.T) *Account {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &Account{
		PrivateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewRandomHash returns 32 random bytes as 0x-prefixed hex, suitable as an
// authorization nonce or transaction hash
func NewRandomHash(t *testing.T) string {
	var buf [32]byte
	_, err := rand.Read(buf[:])
	require.NoError(t, err)
	return hexutil.Encode(buf[:])
}
