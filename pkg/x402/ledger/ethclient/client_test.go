package ethclient

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/x402-resource-server/pkg/x402/ledger"
)

type fakeRpc struct {
	receipts   map[common.Hash]*types.Receipt
	chainId    *big.Int
	receiptErr error
	chainErr   error
}

func (f *fakeRpc) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeRpc) ChainID(_ context.Context) (*big.Int, error) {
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chainId, nil
}

const reference = "0x8d3f2a1b5e6c7d9f0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f6071"

func TestGetTransactionOutcome(t *testing.T) {
	rpc := &fakeRpc{
		receipts: map[common.Hash]*types.Receipt{
			common.HexToHash(reference): {
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(1234),
			},
		},
		chainId: big.NewInt(84532),
	}
	client := newClient(rpc)

	outcome, err := client.GetTransactionOutcome(context.Background(), reference)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "eip155:84532", outcome.Network)
	assert.EqualValues(t, 1234, outcome.BlockNumber)

	// Case and prefix are normalized
	outcome, err = client.GetTransactionOutcome(context.Background(), "8D3F2A1B5E6C7D9F0A1B2C3D4E5F60718293A4B5C6D7E8F90A1B2C3D4E5F6071")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestGetTransactionOutcome_Reverted(t *testing.T) {
	rpc := &fakeRpc{
		receipts: map[common.Hash]*types.Receipt{
			common.HexToHash(reference): {
				Status:      types.ReceiptStatusFailed,
				BlockNumber: big.NewInt(1),
			},
		},
		chainId: big.NewInt(11155111),
	}

	outcome, err := newClient(rpc).GetTransactionOutcome(context.Background(), reference)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "eip155:11155111", outcome.Network)
}

func TestGetTransactionOutcome_NotFound(t *testing.T) {
	client := newClient(&fakeRpc{chainId: big.NewInt(84532)})

	_, err := client.GetTransactionOutcome(context.Background(), reference)
	assert.Equal(t, ledger.ErrTransactionNotFound, err)

	_, err = client.GetTransactionOutcome(context.Background(), "not-a-hash")
	assert.Equal(t, ledger.ErrTransactionNotFound, err)
}

func TestGetTransactionOutcome_RpcErrors(t *testing.T) {
	rpcErr := errors.New("connection refused")

	_, err := newClient(&fakeRpc{receiptErr: rpcErr}).GetTransactionOutcome(context.Background(), reference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rpcErr))
	assert.False(t, errors.Is(err, ledger.ErrTransactionNotFound))

	rpc := &fakeRpc{
		receipts: map[common.Hash]*types.Receipt{
			common.HexToHash(reference): {Status: types.ReceiptStatusSuccessful},
		},
		chainErr: rpcErr,
	}
	_, err = newClient(rpc).GetTransactionOutcome(context.Background(), reference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rpcErr))
}
