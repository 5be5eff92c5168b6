package ethclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/code-payments/x402-resource-server/pkg/x402"
	"github.com/code-payments/x402-resource-server/pkg/x402/ledger"
)

type rpcClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client resolves transaction outcomes through an EVM JSON-RPC endpoint
type Client struct {
	rpc   rpcClient
	close func()
}

// Dial connects to the JSON-RPC endpoint at url
func Dial(ctx context.Context, url string) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "error dialing %s", url)
	}
	return &Client{rpc: rpc, close: rpc.Close}, nil
}

func newClient(rpc rpcClient) *Client {
	return &Client{rpc: rpc}
}

// Close releases the underlying connection
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// GetTransactionOutcome implements ledger.Client.GetTransactionOutcome
func (c *Client) GetTransactionOutcome(ctx context.Context, reference string) (*ledger.Outcome, error) {
	normalized, ok := x402.ParseSettlementReference(reference)
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}

	receipt, err := c.rpc.TransactionReceipt(ctx, common.HexToHash(normalized))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ledger.ErrTransactionNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting transaction receipt")
	} else if receipt == nil {
		return nil, ledger.ErrTransactionNotFound
	}

	chainId, err := c.rpc.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error getting chain id")
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	return &ledger.Outcome{
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		Network:     fmt.Sprintf("eip155:%s", chainId.String()),
		BlockNumber: blockNumber,
	}, nil
}
