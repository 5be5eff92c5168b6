package x402

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	NetworkSepolia     = "eip155:11155111"
	NetworkBaseSepolia = "eip155:84532"
)

// ErrUnknownNetwork indicates no configuration exists for a network identifier
var ErrUnknownNetwork = errors.New("unknown network")

// Asset is an EIP-3009 capable token. Name and Version form part of the
// token's EIP-712 signing domain.
type Asset struct {
	Address  string
	Name     string
	Version  string
	Decimals int
}

// Network is a CAIP-2 identified EVM chain along with its payment asset
type Network struct {
	Id      string
	ChainId *big.Int
	Asset   Asset
}

// Networks is a registry of supported networks keyed by CAIP-2 identifier
type Networks map[string]Network

// DefaultNetworks returns the USDC test networks payments can be made on
func DefaultNetworks() Networks {
	return Networks{
		NetworkSepolia: {
			Id:      NetworkSepolia,
			ChainId: big.NewInt(11155111),
			Asset: Asset{
				Address:  "0x7F594ABa4E1B6e137606a8fBAb5387B90C8DEEa9",
				Name:     "USD Coin",
				Version:  "2",
				Decimals: 6,
			},
		},
		NetworkBaseSepolia: {
			Id:      NetworkBaseSepolia,
			ChainId: big.NewInt(84532),
			Asset: Asset{
				Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				Name:     "USDC",
				Version:  "2",
				Decimals: 6,
			},
		},
	}
}

// Get returns the configuration for a network identifier
func (n Networks) Get(id string) (Network, error) {
	network, ok := n[id]
	if !ok {
		return Network{}, errors.Wrap(ErrUnknownNetwork, id)
	}
	return network, nil
}

// Validate checks the network configuration is internally consistent
func (n Network) Validate() error {
	chainId, err := ChainIdFromNetwork(n.Id)
	if err != nil {
		return err
	}

	if n.ChainId == nil || n.ChainId.Cmp(chainId) != 0 {
		return errors.Errorf("chain id does not match network %s", n.Id)
	}

	if !common.IsHexAddress(n.Asset.Address) {
		return errors.Errorf("invalid asset address for network %s", n.Id)
	}

	if len(n.Asset.Name) == 0 || len(n.Asset.Version) == 0 {
		return errors.Errorf("asset signing domain is required for network %s", n.Id)
	}

	return nil
}

// ChainIdFromNetwork extracts the chain id from an eip155 CAIP-2 identifier
func ChainIdFromNetwork(id string) (*big.Int, error) {
	reference, ok := strings.CutPrefix(id, "eip155:")
	if !ok {
		return nil, errors.Errorf("unsupported network namespace: %s", id)
	}

	chainId, ok := new(big.Int).SetString(reference, 10)
	if !ok || chainId.Sign() <= 0 {
		return nil, errors.Errorf("invalid chain id in network: %s", id)
	}
	return chainId, nil
}
