package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/metrics"
	"github.com/code-payments/x402-resource-server/pkg/pointer"
	"github.com/code-payments/x402-resource-server/pkg/retry"
	"github.com/code-payments/x402-resource-server/pkg/retry/backoff"
	"github.com/code-payments/x402-resource-server/pkg/x402"
)

const (
	DefaultFacilitatorTimeout     = 10 * time.Second
	DefaultFacilitatorMaxAttempts = 3

	maxResponseSize = 1 << 20
)

var errTransient = errors.New("transient facilitator failure")

type settleRequest struct {
	X402Version         int                         `json:"x402Version"`
	PaymentPayload      *x402.TransferAuthorization `json:"paymentPayload"`
	PaymentRequirements settleRequirements          `json:"paymentRequirements"`
}

type settleRequirements struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
	Amount  string `json:"amount"`
	Asset   string `json:"asset"`
	PayTo   string `json:"payTo"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
}

// FacilitatorOption configures a facilitator executor
type FacilitatorOption func(*facilitatorExecutor)

// WithHttpClient overrides the HTTP client used to reach the facilitator
func WithHttpClient(client *http.Client) FacilitatorOption {
	return func(e *facilitatorExecutor) {
		e.httpClient = client
	}
}

// WithMaxAttempts bounds the number of settle calls made per settlement
func WithMaxAttempts(maxAttempts uint) FacilitatorOption {
	return func(e *facilitatorExecutor) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
	}
}

// WithBaseBackoff sets the delay before the first retry
func WithBaseBackoff(d time.Duration) FacilitatorOption {
	return func(e *facilitatorExecutor) {
		e.baseBackoff = d
	}
}

type facilitatorExecutor struct {
	log         *logrus.Entry
	url         string
	httpClient  *http.Client
	maxAttempts uint
	baseBackoff time.Duration

	authProvider AuthProvider
}

// NewFacilitatorExecutor returns an executor that submits authorizations to a
// remote facilitator's /settle endpoint.
//
// Transport failures and 5xx responses are retried. Resubmitting is safe
// because the token contract rejects a reused authorization nonce.
func NewFacilitatorExecutor(url string, timeout time.Duration, opts ...FacilitatorOption) Executor {
	if timeout <= 0 {
		timeout = DefaultFacilitatorTimeout
	}

	e := &facilitatorExecutor{
		log:         logrus.StandardLogger().WithField("type", "x402/settlement/facilitator"),
		url:         strings.TrimSuffix(url, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: DefaultFacilitatorMaxAttempts,
		baseBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settle implements Executor.Settle
func (e *facilitatorExecutor) Settle(ctx context.Context, settlement Settlement) (*string, error) {
	tracer := metrics.TraceMethodCall(ctx, "x402/settlement/facilitator", "Settle")
	defer tracer.End()

	if settlement.Authorization == nil {
		return nil, ErrInvalidSettlement
	}

	log := e.log.WithFields(logrus.Fields{
		"method":  "Settle",
		"payer":   settlement.Authorization.From,
		"network": settlement.Requirement.Network,
	})

	body, err := json.Marshal(&settleRequest{
		X402Version:    2,
		PaymentPayload: settlement.Authorization,
		PaymentRequirements: settleRequirements{
			Scheme:  settlement.Requirement.Scheme,
			Network: settlement.Requirement.Network,
			Amount:  strconv.FormatUint(settlement.Requirement.Amount, 10),
			Asset:   settlement.Requirement.Asset,
			PayTo:   settlement.Requirement.Recipient,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling settle request")
	}

	var resp *settleResponse
	attempts, err := retry.Retry(
		func() error {
			var postErr error
			resp, postErr = e.post(ctx, body)
			if postErr != nil {
				log.WithError(postErr).Debug("settle attempt failed")
			}
			return postErr
		},
		retry.RetriableErrors(errTransient),
		retry.Limit(e.maxAttempts),
		retry.Context(ctx),
		retry.ContextBackoff(ctx, backoff.BinaryExponential(e.baseBackoff), 2*time.Second),
	)
	tracer.AddAttribute("attempts", attempts)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	if !resp.Success {
		return nil, errors.Wrapf(ErrSettlementRejected, "facilitator error: %s", resp.ErrorReason)
	}

	if resp.Network != "" && resp.Network != settlement.Requirement.Network {
		return nil, errors.Errorf("facilitator settled on %s", resp.Network)
	}

	if len(resp.Transaction) == 0 {
		return nil, nil
	}

	reference, ok := x402.ParseSettlementReference(resp.Transaction)
	if !ok {
		return nil, errors.Errorf("facilitator returned invalid transaction reference: %s", resp.Transaction)
	}
	return pointer.To(reference), nil
}

func (e *facilitatorExecutor) post(ctx context.Context, body []byte) (*settleResponse, error) {
	settleUrl := e.url + "/settle"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settleUrl, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "error creating settle request")
	}
	req.Header.Set("Content-Type", "application/json")

	if e.authProvider != nil {
		headers, err := e.authProvider.GetAuthHeaders(ctx, http.MethodPost, settleUrl)
		if err != nil {
			return nil, errors.Wrap(err, "error getting facilitator auth headers")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	httpResp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errTransient, "settle request failed: %v", err)
	}
	defer httpResp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrapf(errTransient, "error reading settle response: %v", err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Wrapf(errTransient, "facilitator settle failed (%d)", httpResp.StatusCode)
	}

	var resp settleResponse
	if err := json.Unmarshal(responseBody, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, errors.Wrapf(ErrSettlementRejected, "facilitator settle failed (%d)", httpResp.StatusCode)
		}
		return nil, errors.Wrap(err, "error decoding settle response")
	}

	if httpResp.StatusCode != http.StatusOK && resp.Success {
		return nil, errors.Wrapf(ErrSettlementRejected, "facilitator settle failed (%d)", httpResp.StatusCode)
	}
	return &resp, nil
}
