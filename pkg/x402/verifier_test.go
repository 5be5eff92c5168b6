package x402

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
	"github.com/code-payments/x402-resource-server/pkg/testutil"
)

type testEnv struct {
	verifier  *Verifier
	network   Network
	payer     *testutil.Account
	recipient *testutil.Account
	req       PaymentRequirement
	now       time.Time
}

func setup(t *testing.T) *testEnv {
	networks := DefaultNetworks()
	network, err := networks.Get(NetworkBaseSepolia)
	require.NoError(t, err)

	recipient := testutil.NewRandomAccount(t)

	req, err := NewPaymentRequirement(network, recipient.Address.Hex(), 10000)
	require.NoError(t, err)

	return &testEnv{
		verifier:  NewVerifier(networks),
		network:   network,
		payer:     testutil.NewRandomAccount(t),
		recipient: recipient,
		req:       req,
		now:       time.Unix(1750000000, 0),
	}
}

func (e *testEnv) newAuthorization(t *testing.T) *TransferAuthorization {
	return &TransferAuthorization{
		Version:     Version,
		From:        e.payer.Address.Hex(),
		To:          e.recipient.Address.Hex(),
		Value:       Uint256FromUint64(e.req.Amount),
		ValidAfter:  Uint256FromUint64(uint64(e.now.Unix() - 60)),
		ValidBefore: Uint256FromUint64(uint64(e.now.Unix() + 300)),
		Nonce:       testutil.NewRandomHash(t),
		Network:     e.req.Network,
	}
}

func (e *testEnv) sign(t *testing.T, auth *TransferAuthorization) {
	require.NoError(t, SignTransferWithAuthorization(auth, e.network, e.payer.PrivateKey))
}

func encode(t *testing.T, auth *TransferAuthorization) string {
	header, err := EncodeAuthorization(auth)
	require.NoError(t, err)
	return header
}

func TestVerify_HappyPath(t *testing.T) {
	env := setup(t)

	auth := env.newAuthorization(t)
	env.sign(t, auth)

	verdict := env.verifier.Verify(encode(t, auth), env.req, env.now)
	require.True(t, verdict.Verified, "rejected with %s", verdict.Reason)
	assert.Equal(t, env.payer.Address.Hex(), verdict.Payer)
	assert.Equal(t, authorization.NonceKey(env.payer.Address.Hex(), auth.Nonce), verdict.Key)
	assert.Empty(t, verdict.Reason)
}

func TestVerify_Deterministic(t *testing.T) {
	env := setup(t)

	auth := env.newAuthorization(t)
	env.sign(t, auth)
	header := encode(t, auth)

	first := env.verifier.Verify(header, env.req, env.now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, env.verifier.Verify(header, env.req, env.now))
	}

	mutated := env.newAuthorization(t)
	mutated.Value = Uint256FromUint64(1)
	env.sign(t, mutated)
	rejectedHeader := encode(t, mutated)

	firstRejection := env.verifier.Verify(rejectedHeader, env.req, env.now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, firstRejection, env.verifier.Verify(rejectedHeader, env.req, env.now))
	}
}

func TestVerify_SingleFieldMutation(t *testing.T) {
	env := setup(t)

	other := testutil.NewRandomAccount(t)

	for _, tc := range []struct {
		name     string
		mutate   func(auth *TransferAuthorization)
		expected RejectReason
	}{
		{
			name:     "payer",
			mutate:   func(auth *TransferAuthorization) { auth.From = other.Address.Hex() },
			expected: ReasonInvalidSignature,
		},
		{
			name:     "value",
			mutate:   func(auth *TransferAuthorization) { auth.Value = Uint256FromUint64(20000) },
			expected: ReasonAmountMismatch,
		},
		{
			name:     "recipient",
			mutate:   func(auth *TransferAuthorization) { auth.To = other.Address.Hex() },
			expected: ReasonRecipientMismatch,
		},
		{
			name:     "network",
			mutate:   func(auth *TransferAuthorization) { auth.Network = NetworkSepolia },
			expected: ReasonNetworkMismatch,
		},
		{
			name: "valid after",
			mutate: func(auth *TransferAuthorization) {
				auth.ValidAfter = Uint256FromUint64(uint64(env.now.Unix() - 59))
			},
			expected: ReasonInvalidSignature,
		},
		{
			name: "valid before",
			mutate: func(auth *TransferAuthorization) {
				auth.ValidBefore = Uint256FromUint64(uint64(env.now.Unix() + 301))
			},
			expected: ReasonInvalidSignature,
		},
		{
			name:     "nonce",
			mutate:   func(auth *TransferAuthorization) { auth.Nonce = testutil.NewRandomHash(t) },
			expected: ReasonInvalidSignature,
		},
		{
			name: "signature byte",
			mutate: func(auth *TransferAuthorization) {
				signature, err := hexutil.Decode(auth.Signature)
				require.NoError(t, err)
				signature[10] ^= 0xff
				auth.Signature = hexutil.Encode(signature)
			},
			expected: ReasonInvalidSignature,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			auth := env.newAuthorization(t)
			env.sign(t, auth)
			require.True(t, env.verifier.Verify(encode(t, auth), env.req, env.now).Verified)

			tc.mutate(auth)

			verdict := env.verifier.Verify(encode(t, auth), env.req, env.now)
			assert.False(t, verdict.Verified)
			assert.Equal(t, tc.expected, verdict.Reason)
			assert.Empty(t, verdict.Key)
		})
	}
}

func TestVerify_InclusiveTimeBounds(t *testing.T) {
	env := setup(t)

	validAfter := env.now.Unix()
	validBefore := env.now.Unix() + 100

	auth := env.newAuthorization(t)
	auth.ValidAfter = Uint256FromUint64(uint64(validAfter))
	auth.ValidBefore = Uint256FromUint64(uint64(validBefore))
	env.sign(t, auth)
	header := encode(t, auth)

	assert.True(t, env.verifier.Verify(header, env.req, time.Unix(validAfter, 0)).Verified)
	assert.True(t, env.verifier.Verify(header, env.req, time.Unix(validBefore, 0)).Verified)
	assert.True(t, env.verifier.Verify(header, env.req, time.Unix(validBefore, 999999999)).Verified)

	verdict := env.verifier.Verify(header, env.req, time.Unix(validAfter-1, 0))
	assert.False(t, verdict.Verified)
	assert.Equal(t, ReasonNotYetValid, verdict.Reason)

	verdict = env.verifier.Verify(header, env.req, time.Unix(validBefore+1, 0))
	assert.False(t, verdict.Verified)
	assert.Equal(t, ReasonExpired, verdict.Reason)
}

func TestVerify_ExactPricing(t *testing.T) {
	env := setup(t)

	for _, value := range []uint64{env.req.Amount - 1, env.req.Amount + 1, 0} {
		auth := env.newAuthorization(t)
		auth.Value = Uint256FromUint64(value)
		env.sign(t, auth)

		verdict := env.verifier.Verify(encode(t, auth), env.req, env.now)
		assert.False(t, verdict.Verified)
		assert.Equal(t, ReasonAmountMismatch, verdict.Reason)
	}
}

func TestVerify_CheckOrder(t *testing.T) {
	env := setup(t)

	auth := env.newAuthorization(t)
	auth.Version = "1"
	auth.Network = NetworkSepolia
	auth.Value = Uint256FromUint64(1)
	env.sign(t, auth)
	assert.Equal(t, ReasonUnsupportedVersion, env.verifier.Verify(encode(t, auth), env.req, env.now).Reason)

	auth.Version = Version
	assert.Equal(t, ReasonNetworkMismatch, env.verifier.Verify(encode(t, auth), env.req, env.now).Reason)

	auth.Network = env.req.Network
	assert.Equal(t, ReasonAmountMismatch, env.verifier.Verify(encode(t, auth), env.req, env.now).Reason)
}

func TestVerify_OptionalNetwork(t *testing.T) {
	env := setup(t)

	auth := env.newAuthorization(t)
	auth.Network = ""
	env.sign(t, auth)

	verdict := env.verifier.Verify(encode(t, auth), env.req, env.now)
	require.True(t, verdict.Verified, "rejected with %s", verdict.Reason)
	assert.Equal(t, env.payer.Address.Hex(), verdict.Payer)

	auth.Network = NetworkSepolia
	verdict = env.verifier.Verify(encode(t, auth), env.req, env.now)
	assert.False(t, verdict.Verified)
	assert.Equal(t, ReasonNetworkMismatch, verdict.Reason)
}

func TestVerify_NoncesScopedToPayer(t *testing.T) {
	env := setup(t)

	victim := env.newAuthorization(t)
	env.sign(t, victim)

	// Another payer signs an authorization reusing the victim's nonce
	other := testutil.NewRandomAccount(t)
	copied := env.newAuthorization(t)
	copied.From = other.Address.Hex()
	copied.Nonce = victim.Nonce
	require.NoError(t, SignTransferWithAuthorization(copied, env.network, other.PrivateKey))

	victimVerdict := env.verifier.Verify(encode(t, victim), env.req, env.now)
	copiedVerdict := env.verifier.Verify(encode(t, copied), env.req, env.now)
	require.True(t, victimVerdict.Verified)
	require.True(t, copiedVerdict.Verified)
	assert.NotEqual(t, victimVerdict.Key, copiedVerdict.Key)
}

func TestVerify_RecipientCaseInsensitive(t *testing.T) {
	env := setup(t)

	auth := env.newAuthorization(t)
	auth.To = strings.ToLower(auth.To)
	env.sign(t, auth)

	req := env.req
	req.Recipient = "0x" + strings.ToUpper(req.Recipient[2:])

	assert.True(t, env.verifier.Verify(encode(t, auth), req, env.now).Verified)
}

func TestVerify_UnknownNetwork(t *testing.T) {
	env := setup(t)

	verifier := NewVerifier(Networks{})

	auth := env.newAuthorization(t)
	env.sign(t, auth)

	verdict := verifier.Verify(encode(t, auth), env.req, env.now)
	assert.False(t, verdict.Verified)
	assert.Equal(t, ReasonUnknownNetwork, verdict.Reason)
}

func TestVerify_MalformedProof(t *testing.T) {
	env := setup(t)

	auth := env.newAuthorization(t)
	env.sign(t, auth)
	valid := encode(t, auth)

	shortNonce := *auth
	shortNonce.Nonce = "0x1234"

	shortSignature := *auth
	shortSignature.Signature = auth.Signature[:len(auth.Signature)-2]

	for _, header := range []string{
		"",
		"not base64!",
		"bm90IGpzb24=",
		valid[:len(valid)/2],
		encode(t, &shortNonce),
		encode(t, &shortSignature),
	} {
		verdict := env.verifier.Verify(header, env.req, env.now)
		assert.False(t, verdict.Verified)
		assert.Equal(t, ReasonMalformedProof, verdict.Reason)
	}
}
