package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/code-payments/x402-resource-server/pkg/resource"
	"github.com/code-payments/x402-resource-server/pkg/x402"
)

// ErrNoPaymentTerms indicates an agent card doesn't declare usable payment terms
var ErrNoPaymentTerms = errors.New("agent card has no payment terms")

// Payment is the payment block of an agent card. Older cards use price and
// network in place of pricePerCall and chain.
type Payment struct {
	TokenAddress    string `json:"tokenAddress,omitempty"`
	ReceiverAddress string `json:"receiverAddress,omitempty"`
	PricePerCall    string `json:"pricePerCall,omitempty"`
	Price           string `json:"price,omitempty"`
	Chain           string `json:"chain,omitempty"`
	Network         string `json:"network,omitempty"`
}

type Endpoint struct {
	Url  string `json:"url"`
	Spec string `json:"spec,omitempty"`
}

// AgentCard is the agent.json document describing a paid resource
type AgentCard struct {
	AgentId            string     `json:"agent_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Version            string     `json:"version"`
	Category           string     `json:"category"`
	Endpoints          []Endpoint `json:"endpoints"`
	Payment            *Payment   `json:"payment,omitempty"`
	DefaultInputModes  []string   `json:"defaultInputModes"`
	DefaultOutputModes []string   `json:"defaultOutputModes"`
}

// PaymentTerms are the price and payment destination of a resource
type PaymentTerms struct {
	Amount    uint64
	Recipient string
	Network   string
	Asset     string
}

// NewAgentCard describes a locally served resource
func NewAgentCard(res resource.Resource, baseUrl string, terms *PaymentTerms) *AgentCard {
	metadata := res.Metadata()
	endpoint := fmt.Sprintf("%s/api/agents/%s", strings.TrimSuffix(baseUrl, "/"), res.Id())

	return &AgentCard{
		AgentId:     metadata.AgentId,
		Name:        metadata.Name,
		Description: metadata.Description,
		Version:     metadata.Version,
		Category:    metadata.Category,
		Endpoints: []Endpoint{
			{Url: endpoint},
		},
		Payment: &Payment{
			TokenAddress:    terms.Asset,
			ReceiverAddress: terms.Recipient,
			PricePerCall:    strconv.FormatUint(terms.Amount, 10),
			Chain:           terms.Network,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}

// PaymentTerms extracts the card's payment terms
func (c *AgentCard) PaymentTerms() (*PaymentTerms, error) {
	if c.Payment == nil {
		return nil, ErrNoPaymentTerms
	}

	price := c.Payment.PricePerCall
	if len(price) == 0 {
		price = c.Payment.Price
	}
	network := c.Payment.Chain
	if len(network) == 0 {
		network = c.Payment.Network
	}

	if len(price) == 0 || len(network) == 0 || len(c.Payment.ReceiverAddress) == 0 {
		return nil, ErrNoPaymentTerms
	}

	amount, err := strconv.ParseUint(price, 10, 64)
	if err != nil || amount == 0 {
		return nil, errors.Wrapf(ErrNoPaymentTerms, "invalid price %q", price)
	}

	if !common.IsHexAddress(c.Payment.ReceiverAddress) {
		return nil, errors.Wrap(ErrNoPaymentTerms, "invalid receiver address")
	}

	return &PaymentTerms{
		Amount:    amount,
		Recipient: c.Payment.ReceiverAddress,
		Network:   network,
		Asset:     c.Payment.TokenAddress,
	}, nil
}

// Requirement converts the terms into a payment requirement on one of the
// supported networks. A declared asset must be the network's payment asset.
func (t *PaymentTerms) Requirement(networks x402.Networks) (x402.PaymentRequirement, error) {
	network, err := networks.Get(t.Network)
	if err != nil {
		return x402.PaymentRequirement{}, err
	}

	if len(t.Asset) > 0 && common.HexToAddress(t.Asset) != common.HexToAddress(network.Asset.Address) {
		return x402.PaymentRequirement{}, errors.Errorf("asset %s is not supported on %s", t.Asset, t.Network)
	}

	return x402.NewPaymentRequirement(network, t.Recipient, t.Amount)
}
