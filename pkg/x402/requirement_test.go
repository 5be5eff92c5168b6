package x402

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChallenge_MatchesRequirement(t *testing.T) {
	for _, network := range DefaultNetworks() {
		for _, amount := range []uint64{1, 10000, 15000, 20000, 1 << 40} {
			req, err := NewPaymentRequirement(network, "0x25b61126EED206F6470533C073DDC3B4157bb6d1", amount)
			require.NoError(t, err)

			challenge := NewChallenge(req)
			assert.Equal(t, Version, challenge.Version)
			assert.True(t, challenge.PaymentRequired)
			assert.Equal(t, strconv.FormatUint(amount, 10), challenge.Amount)
			assert.Equal(t, req.Recipient, challenge.Receiver)
			assert.Equal(t, network.Asset.Address, challenge.TokenAddress)
			assert.Equal(t, network.Id, challenge.Network)

			assert.Equal(t, challenge, NewChallenge(req))
		}
	}
}

func TestChallenge_WireFormat(t *testing.T) {
	network, err := DefaultNetworks().Get(NetworkSepolia)
	require.NoError(t, err)

	req, err := NewPaymentRequirement(network, "0x25b61126EED206F6470533C073DDC3B4157bb6d1", 10000)
	require.NoError(t, err)

	serialized, err := json.Marshal(NewChallenge(req))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"version": "2",
		"paymentRequired": true,
		"amount": "10000",
		"receiver": "0x25b61126EED206F6470533C073DDC3B4157bb6d1",
		"tokenAddress": "0x7F594ABa4E1B6e137606a8fBAb5387B90C8DEEa9",
		"network": "eip155:11155111"
	}`, string(serialized))
}

func TestPaymentRequirement_Validate(t *testing.T) {
	network, err := DefaultNetworks().Get(NetworkBaseSepolia)
	require.NoError(t, err)

	_, err = NewPaymentRequirement(network, "0x25b61126EED206F6470533C073DDC3B4157bb6d1", 0)
	assert.Error(t, err)

	_, err = NewPaymentRequirement(network, "not-an-address", 10000)
	assert.Error(t, err)

	req, err := NewPaymentRequirement(network, "0x25b61126EED206F6470533C073DDC3B4157bb6d1", 10000)
	require.NoError(t, err)

	req.Scheme = "upto"
	assert.Error(t, req.Validate())
}
