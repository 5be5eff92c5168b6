package discovery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/cache"
	"github.com/code-payments/x402-resource-server/pkg/metrics"
	"github.com/code-payments/x402-resource-server/pkg/netutil"
	"github.com/code-payments/x402-resource-server/pkg/resource"
	"github.com/code-payments/x402-resource-server/pkg/x402"
)

const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultCacheTTL     = 5 * time.Minute

	maxCardSize = 256 << 10
)

// Provider resolves the payment terms of a resource
type Provider interface {
	GetPaymentTerms(ctx context.Context, resourceId string) (*PaymentTerms, error)
}

type staticProvider struct {
	registry  *resource.Registry
	network   x402.Network
	recipient string
}

// NewStaticProvider returns a provider that prices resources with their
// configured price, payable to recipient on network
func NewStaticProvider(registry *resource.Registry, network x402.Network, recipient string) Provider {
	return &staticProvider{
		registry:  registry,
		network:   network,
		recipient: recipient,
	}
}

// GetPaymentTerms implements Provider.GetPaymentTerms
func (p *staticProvider) GetPaymentTerms(_ context.Context, resourceId string) (*PaymentTerms, error) {
	res, err := p.registry.Get(resourceId)
	if err != nil {
		return nil, err
	}

	return &PaymentTerms{
		Amount:    res.PriceInfo().Amount,
		Recipient: p.recipient,
		Network:   p.network.Id,
		Asset:     p.network.Asset.Address,
	}, nil
}

// AgentCardProvider resolves payment terms from remote agent cards. Terms are
// cached for a fixed TTL. Resources without a card URL are resolved by the
// fallback provider.
type AgentCardProvider struct {
	log        *logrus.Entry
	httpClient *http.Client
	cardUrls   map[string]string
	cache      cache.Cache
	fallback   Provider
}

// AgentCardOption configures an AgentCardProvider
type AgentCardOption func(*AgentCardProvider)

// WithHttpClient overrides the HTTP client used to fetch agent cards
func WithHttpClient(client *http.Client) AgentCardOption {
	return func(p *AgentCardProvider) {
		p.httpClient = client
	}
}

func NewAgentCardProvider(cardUrls map[string]string, termsCache cache.Cache, fallback Provider, opts ...AgentCardOption) (*AgentCardProvider, error) {
	for resourceId, cardUrl := range cardUrls {
		if err := netutil.ValidateHttpUrl(cardUrl, false); err != nil {
			return nil, errors.Wrapf(err, "invalid agent card url for resource %s", resourceId)
		}
	}

	p := &AgentCardProvider{
		log:        logrus.StandardLogger().WithField("type", "discovery/agentcard"),
		httpClient: &http.Client{Timeout: DefaultFetchTimeout},
		cardUrls:   cardUrls,
		cache:      termsCache,
		fallback:   fallback,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GetPaymentTerms implements Provider.GetPaymentTerms
func (p *AgentCardProvider) GetPaymentTerms(ctx context.Context, resourceId string) (*PaymentTerms, error) {
	cardUrl, ok := p.cardUrls[resourceId]
	if !ok {
		return p.fallback.GetPaymentTerms(ctx, resourceId)
	}

	if cached, ok := p.cache.Retrieve(cardUrl); ok {
		terms := *cached.(*PaymentTerms)
		return &terms, nil
	}

	tracer := metrics.TraceMethodCall(ctx, "discovery/agentcard", "GetPaymentTerms")
	defer tracer.End()

	log := p.log.WithFields(logrus.Fields{
		"method":   "GetPaymentTerms",
		"resource": resourceId,
		"url":      cardUrl,
	})

	card, err := p.fetchCard(ctx, cardUrl)
	if err != nil {
		log.WithError(err).Warn("failure fetching agent card")
		tracer.OnError(err)
		return nil, err
	}

	terms, err := card.PaymentTerms()
	if err != nil {
		log.WithError(err).Warn("agent card has invalid payment terms")
		return nil, err
	}

	cached := *terms
	err = p.cache.Insert(cardUrl, &cached, 1)
	if err != nil && err != cache.ErrKeyExists {
		log.WithError(err).Warn("failure caching payment terms")
	}

	return terms, nil
}

func (p *AgentCardProvider) fetchCard(ctx context.Context, cardUrl string) (*AgentCard, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardUrl, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating agent card request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "agent card request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%d status code fetching agent card", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCardSize))
	if err != nil {
		return nil, errors.Wrap(err, "error reading agent card")
	}

	var card AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, errors.Wrap(err, "error decoding agent card")
	}
	return &card, nil
}
