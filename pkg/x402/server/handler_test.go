package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
	memory_authorization_store "github.com/code-payments/x402-resource-server/pkg/data/authorization/memory"
	"github.com/code-payments/x402-resource-server/pkg/discovery"
	"github.com/code-payments/x402-resource-server/pkg/resource"
	"github.com/code-payments/x402-resource-server/pkg/resource/flight"
	"github.com/code-payments/x402-resource-server/pkg/resource/hotel"
	"github.com/code-payments/x402-resource-server/pkg/resource/tourism"
	"github.com/code-payments/x402-resource-server/pkg/testutil"
	"github.com/code-payments/x402-resource-server/pkg/x402"
	"github.com/code-payments/x402-resource-server/pkg/x402/ledger"
	memory_ledger_client "github.com/code-payments/x402-resource-server/pkg/x402/ledger/memory"
	"github.com/code-payments/x402-resource-server/pkg/x402/replay"
	"github.com/code-payments/x402-resource-server/pkg/x402/settlement"
)

const brokenResourceId = "broken"

type testEnv struct {
	handler   *Handler
	store     authorization.Store
	ledger    *memory_ledger_client.Client
	executor  *recordingExecutor
	network   x402.Network
	payer     *testutil.Account
	recipient *testutil.Account
	now       time.Time
}

func setup(t *testing.T) *testEnv {
	return setupWithOverrides(t, &testOverrides{
		baseUrl:           "http://localhost:8080",
		maxBodySize:       1024,
		settlementTimeout: time.Second,
	})
}

func setupWithOverrides(t *testing.T, overrides *testOverrides) *testEnv {
	networks := x402.DefaultNetworks()
	network, err := networks.Get(x402.NetworkBaseSepolia)
	require.NoError(t, err)

	registry, err := resource.NewRegistry(flight.New(), hotel.New(), tourism.New(), &brokenResource{})
	require.NoError(t, err)

	recipient := testutil.NewRandomAccount(t)
	store := memory_authorization_store.New()
	ledgerClient := memory_ledger_client.NewClient()
	oracle := ledger.NewOracle(map[string]ledger.Client{network.Id: ledgerClient}, 100*time.Millisecond)
	executor := &recordingExecutor{delegate: settlement.NewSimulatedExecutor()}

	handler := NewHandler(
		registry,
		discovery.NewStaticProvider(registry, network, recipient.Address.Hex()),
		networks,
		replay.NewGuard(store),
		oracle,
		executor,
		withManualTestOverrides(overrides),
	)

	now := time.Unix(1750000000, 0)
	handler.now = func() time.Time { return now }

	return &testEnv{
		handler:   handler,
		store:     store,
		ledger:    ledgerClient,
		executor:  executor,
		network:   network,
		payer:     testutil.NewRandomAccount(t),
		recipient: recipient,
		now:       now,
	}
}

func (e *testEnv) newSignedPayment(t *testing.T, amount uint64) (string, *x402.TransferAuthorization) {
	auth := &x402.TransferAuthorization{
		Version:     x402.Version,
		From:        e.payer.Address.Hex(),
		To:          e.recipient.Address.Hex(),
		Value:       x402.Uint256FromUint64(amount),
		ValidAfter:  x402.Uint256FromUint64(uint64(e.now.Unix() - 60)),
		ValidBefore: x402.Uint256FromUint64(uint64(e.now.Unix() + 300)),
		Nonce:       testutil.NewRandomHash(t),
		Network:     e.network.Id,
	}
	require.NoError(t, x402.SignTransferWithAuthorization(auth, e.network, e.payer.PrivateKey))

	header, err := x402.EncodeAuthorization(auth)
	require.NoError(t, err)
	return header, auth
}

func (e *testEnv) call(resourceId, body, proof string) *Response {
	return e.handler.Handle(context.Background(), &PaidRequest{
		RequestId:  "test",
		ResourceId: resourceId,
		Body:       []byte(body),
		Proof:      proof,
	})
}

const flightRequestBody = `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"origin":"NRT","destination":"paris","date":"2025-12-01"}}`

func TestHandle_AwaitingPayment(t *testing.T) {
	env := setup(t)

	resp := env.call(flight.Id, flightRequestBody, "")
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, OutcomeMissingPayment, resp.Outcome)
	assert.Empty(t, resp.Headers)

	challenge, ok := resp.Body.(x402.Challenge)
	require.True(t, ok)
	assert.Equal(t, x402.Version, challenge.Version)
	assert.True(t, challenge.PaymentRequired)
	assert.Equal(t, "10000", challenge.Amount)
	assert.Equal(t, env.recipient.Address.Hex(), challenge.Receiver)
	assert.Equal(t, env.network.Asset.Address, challenge.TokenAddress)
	assert.Equal(t, env.network.Id, challenge.Network)
	assert.Equal(t, 0, env.executor.Calls())
}

func TestHandle_FulfilledWithAuthorization(t *testing.T) {
	env := setup(t)

	proof, auth := env.newSignedPayment(t, flight.Price)

	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusOK, resp.StatusCode, "rejected with %s", resp.Reason)
	assert.Equal(t, OutcomeFulfilled, resp.Outcome)

	rpcResp, ok := resp.Body.(*RpcResponse)
	require.True(t, ok)
	assert.Equal(t, json.RawMessage("1"), rpcResp.Id)
	assert.Nil(t, rpcResp.Error)

	result, ok := rpcResp.Result.(*flight.SearchResult)
	require.True(t, ok)
	require.NotEmpty(t, result.Flights)
	assert.True(t, len(result.Flights) <= 3)

	receipt, err := x402.DecodeReceipt(resp.Headers[x402.PaymentResponseHeaderName])
	require.NoError(t, err)
	assert.Equal(t, x402.Version, receipt.Version)
	assert.Equal(t, "10000", receipt.Amount)
	assert.Equal(t, env.network.Id, receipt.Network)
	assert.Equal(t, env.now.Unix(), receipt.Timestamp)
	require.NotNil(t, receipt.Reference)

	record, err := env.store.Get(context.Background(), authorization.NonceKey(env.payer.Address.Hex(), auth.Nonce))
	require.NoError(t, err)
	assert.Equal(t, authorization.KindNonce, record.Kind)
	assert.Equal(t, flight.Id, record.SubjectId)
	assert.Equal(t, env.payer.Address.Hex(), record.Payer)
	assert.EqualValues(t, flight.Price, record.Amount)
}

func TestHandle_ReplayRejected(t *testing.T) {
	env := setup(t)

	proof, _ := env.newSignedPayment(t, flight.Price)

	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeReplayDetected, resp.Outcome)
	assert.Empty(t, resp.Headers)
	assertRpcError(t, resp, http.StatusForbidden, paymentVerificationFailedMessage)

	assert.Equal(t, 1, env.executor.Calls())
}

func TestHandle_ConcurrentReplay(t *testing.T) {
	env := setup(t)

	proof, _ := env.newSignedPayment(t, flight.Price)

	const workers = 32

	var wg sync.WaitGroup
	responses := make([]*Response, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = env.call(flight.Id, flightRequestBody, proof)
		}(i)
	}
	wg.Wait()

	var fulfilled, replayed int
	for _, resp := range responses {
		switch resp.Outcome {
		case OutcomeFulfilled:
			fulfilled++
			assert.NotEmpty(t, resp.Headers[x402.PaymentResponseHeaderName])
		case OutcomeReplayDetected:
			replayed++
			assert.Empty(t, resp.Headers)
		default:
			t.Errorf("unexpected outcome %s (%s)", resp.Outcome, resp.Reason)
		}
	}
	assert.Equal(t, 1, fulfilled)
	assert.Equal(t, workers-1, replayed)
	assert.Equal(t, 1, env.executor.Calls())
}

func TestHandle_InvalidPayment(t *testing.T) {
	env := setup(t)

	underpaid, _ := env.newSignedPayment(t, flight.Price-1)
	overpaid, _ := env.newSignedPayment(t, flight.Price+1)
	wrongResource, _ := env.newSignedPayment(t, hotel.Price)

	for _, proof := range []string{
		"not-a-payment",
		"bm90IGpzb24=",
		underpaid,
		overpaid,
		wrongResource,
	} {
		resp := env.call(flight.Id, flightRequestBody, proof)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, OutcomeInvalidPayment, resp.Outcome)
		assert.NotEmpty(t, resp.Reason)
		assert.Empty(t, resp.Headers)
		assertRpcError(t, resp, http.StatusForbidden, paymentVerificationFailedMessage)
	}

	assert.Equal(t, 0, env.executor.Calls())
}

func TestHandle_ExpiredAuthorization(t *testing.T) {
	env := setup(t)

	proof, _ := env.newSignedPayment(t, flight.Price)

	later := env.now.Add(time.Hour)
	env.handler.now = func() time.Time { return later }

	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeInvalidPayment, resp.Outcome)
	assert.Equal(t, string(x402.ReasonExpired), resp.Reason)
}

func TestHandle_FulfilledWithReference(t *testing.T) {
	env := setup(t)

	reference := testutil.NewRandomHash(t)
	env.ledger.SetOutcome(reference, ledger.Outcome{
		Success:     true,
		Network:     env.network.Id,
		BlockNumber: 42,
	})

	resp := env.call(hotel.Id, `{"jsonrpc":"2.0","id":"abc","method":"message/send","params":{"city":"tokyo"}}`, reference)
	require.Equal(t, http.StatusOK, resp.StatusCode, "rejected with %s", resp.Reason)
	assert.Equal(t, OutcomeFulfilled, resp.Outcome)

	receipt, err := x402.DecodeReceipt(resp.Headers[x402.PaymentResponseHeaderName])
	require.NoError(t, err)
	require.NotNil(t, receipt.Reference)
	assert.Equal(t, reference, *receipt.Reference)
	assert.Equal(t, "15000", receipt.Amount)

	record, err := env.store.Get(context.Background(), authorization.ReferenceKey(reference))
	require.NoError(t, err)
	assert.Equal(t, authorization.KindReference, record.Kind)
	assert.Equal(t, authorization.StatusLedgerConfirmed, record.Status)

	// Reused on another resource
	resp = env.call(tourism.Id, `{"jsonrpc":"2.0","id":2,"method":"message/send"}`, reference)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeReplayDetected, resp.Outcome)

	// Authorizations never settle through the reference path
	assert.Equal(t, 0, env.executor.Calls())
}

func TestHandle_UnconfirmedReference(t *testing.T) {
	env := setup(t)

	reverted := testutil.NewRandomHash(t)
	env.ledger.SetOutcome(reverted, ledger.Outcome{Success: false, Network: env.network.Id})

	otherNetwork := testutil.NewRandomHash(t)
	env.ledger.SetOutcome(otherNetwork, ledger.Outcome{Success: true, Network: x402.NetworkSepolia})

	for _, tc := range []struct {
		reference string
		outcome   Outcome
		reason    ledger.UnconfirmedReason
	}{
		{testutil.NewRandomHash(t), OutcomeInvalidPayment, ledger.ReasonNotFound},
		{reverted, OutcomeInvalidPayment, ledger.ReasonReverted},
		{otherNetwork, OutcomeInvalidPayment, ledger.ReasonNetworkMismatch},
	} {
		resp := env.call(flight.Id, flightRequestBody, tc.reference)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, tc.outcome, resp.Outcome)
		assert.Equal(t, string(tc.reason), resp.Reason)
		assertRpcError(t, resp, http.StatusForbidden, paymentVerificationFailedMessage)

		_, err := env.store.Get(context.Background(), authorization.ReferenceKey(tc.reference))
		assert.Equal(t, authorization.ErrNotFound, err)
	}
}

func TestHandle_LedgerUnavailable(t *testing.T) {
	env := setup(t)

	reference := testutil.NewRandomHash(t)
	env.ledger.SetOutcome(reference, ledger.Outcome{Success: true, Network: env.network.Id})
	env.ledger.SimulateErrors(true)

	resp := env.call(flight.Id, flightRequestBody, reference)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeLedgerUnavailable, resp.Outcome)
	assert.Equal(t, string(ledger.ReasonUnavailable), resp.Reason)
	assertRpcError(t, resp, http.StatusForbidden, paymentVerificationFailedMessage)

	env.ledger.SimulateErrors(false)
	env.ledger.SimulateDelay(time.Second)

	resp = env.call(flight.Id, flightRequestBody, reference)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeLedgerUnavailable, resp.Outcome)
	assert.Equal(t, string(ledger.ReasonTimeout), resp.Reason)

	// The reference was never reserved, so it can still be used
	env.ledger.SimulateDelay(0)

	resp = env.call(flight.Id, flightRequestBody, reference)
	require.Equal(t, http.StatusOK, resp.StatusCode, "rejected with %s", resp.Reason)
}

func TestHandle_NoOracle(t *testing.T) {
	env := setup(t)
	env.handler.oracle = nil

	resp := env.call(flight.Id, flightRequestBody, testutil.NewRandomHash(t))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeLedgerUnavailable, resp.Outcome)
}

func TestHandle_SettlementFailure(t *testing.T) {
	env := setup(t)
	env.executor.err = settlement.ErrSettlementRejected

	proof, auth := env.newSignedPayment(t, flight.Price)

	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, OutcomeSettlementFailure, resp.Outcome)
	assert.Empty(t, resp.Headers)
	assertRpcError(t, resp, http.StatusInternalServerError, paymentExecutionFailedMessage)

	// The authorization stays consumed
	_, err := env.store.Get(context.Background(), authorization.NonceKey(env.payer.Address.Hex(), auth.Nonce))
	require.NoError(t, err)

	env.executor.err = nil

	resp = env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeReplayDetected, resp.Outcome)
	assert.Equal(t, 1, env.executor.Calls())
}

func TestHandle_SettlementSurvivesCallerCancellation(t *testing.T) {
	env := setup(t)
	env.executor.delay = 50 * time.Millisecond

	proof, auth := env.newSignedPayment(t, flight.Price)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	resp := env.handler.Handle(ctx, &PaidRequest{
		RequestId:  "test",
		ResourceId: flight.Id,
		Body:       []byte(flightRequestBody),
		Proof:      proof,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "rejected with %s", resp.Reason)
	assert.Equal(t, OutcomeFulfilled, resp.Outcome)
	assert.NotEmpty(t, resp.Headers[x402.PaymentResponseHeaderName])
	assert.Equal(t, 1, env.executor.Calls())

	_, err := env.store.Get(context.Background(), authorization.NonceKey(env.payer.Address.Hex(), auth.Nonce))
	require.NoError(t, err)
}

func TestHandle_SettlementTimeout(t *testing.T) {
	env := setupWithOverrides(t, &testOverrides{
		baseUrl:           "http://localhost:8080",
		maxBodySize:       1024,
		settlementTimeout: 10 * time.Millisecond,
	})
	env.executor.delay = time.Second

	proof, _ := env.newSignedPayment(t, flight.Price)

	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, OutcomeSettlementFailure, resp.Outcome)
	assert.Empty(t, resp.Headers)
}

func TestHandle_SettlementReferenceNotReusable(t *testing.T) {
	env := setup(t)

	proof, _ := env.newSignedPayment(t, flight.Price)

	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusOK, resp.StatusCode, "rejected with %s", resp.Reason)

	receipt, err := x402.DecodeReceipt(resp.Headers[x402.PaymentResponseHeaderName])
	require.NoError(t, err)
	require.NotNil(t, receipt.Reference)
	reference := *receipt.Reference

	record, err := env.store.Get(context.Background(), authorization.ReferenceKey(reference))
	require.NoError(t, err)
	assert.Equal(t, authorization.KindReference, record.Kind)
	assert.Equal(t, authorization.StatusSettled, record.Status)
	assert.Equal(t, flight.Id, record.SubjectId)
	assert.Equal(t, env.payer.Address.Hex(), record.Payer)
	assert.EqualValues(t, flight.Price, record.Amount)

	// The settled transaction is confirmed on chain, but was already paid for
	env.ledger.SetOutcome(reference, ledger.Outcome{
		Success:     true,
		Network:     env.network.Id,
		BlockNumber: 43,
	})

	resp = env.call(hotel.Id, `{"jsonrpc":"2.0","id":"abc","method":"message/send","params":{"city":"tokyo"}}`, reference)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, OutcomeReplayDetected, resp.Outcome)
	assert.Equal(t, 1, env.executor.Calls())
}

func TestHandle_ResponseGenerationFailure(t *testing.T) {
	env := setup(t)

	proof, _ := env.newSignedPayment(t, brokenResourcePrice)

	resp := env.call(brokenResourceId, `{"jsonrpc":"2.0","id":7,"method":"message/send"}`, proof)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, OutcomeInternalError, resp.Outcome)
	assertRpcError(t, resp, codeInternalError, internalErrorMessage)

	// Settlement already happened, so the receipt is still returned
	assert.NotEmpty(t, resp.Headers[x402.PaymentResponseHeaderName])
}

func TestHandle_MalformedRequests(t *testing.T) {
	env := setup(t)

	proof, _ := env.newSignedPayment(t, flight.Price)

	for _, tc := range []struct {
		resourceId string
		body       string
		statusCode int
		code       int
		id         json.RawMessage
	}{
		{"unknown", flightRequestBody, http.StatusNotFound, codeMethodNotFound, nil},
		{flight.Id, `{"jsonrpc":`, http.StatusBadRequest, codeParseError, nil},
		{flight.Id, `[]`, http.StatusBadRequest, codeParseError, nil},
		{flight.Id, `{"jsonrpc":"1.0","id":3,"method":"message/send"}`, http.StatusBadRequest, codeInvalidRequest, json.RawMessage("3")},
		{flight.Id, `{"jsonrpc":"2.0","id":4,"method":"tasks/get"}`, http.StatusBadRequest, codeInvalidRequest, json.RawMessage("4")},
		{flight.Id, `{"jsonrpc":"2.0","id":5,"method":"message/send","params":{"passengers":0}}`, http.StatusBadRequest, codeInvalidParams, json.RawMessage("5")},
		{flight.Id, `{"jsonrpc":"2.0","id":6,"method":"message/send","params":"paris"}`, http.StatusBadRequest, codeInvalidParams, json.RawMessage("6")},
	} {
		// Malformed requests fail before the proof is looked at
		resp := env.call(tc.resourceId, tc.body, proof)
		require.Equal(t, tc.statusCode, resp.StatusCode, tc.body)
		assert.Equal(t, OutcomeMalformedRequest, resp.Outcome)

		rpcResp, ok := resp.Body.(*RpcResponse)
		require.True(t, ok)
		require.NotNil(t, rpcResp.Error)
		assert.Equal(t, tc.code, rpcResp.Error.Code)
		assert.Equal(t, tc.id, rpcResp.Id)
	}

	assert.Equal(t, 0, env.executor.Calls())

	// The proof was never consumed
	resp := env.call(flight.Id, flightRequestBody, proof)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandle_InvalidParamsData(t *testing.T) {
	env := setup(t)

	resp := env.call(tourism.Id, `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"days":30}}`, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	rpcResp, ok := resp.Body.(*RpcResponse)
	require.True(t, ok)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, invalidParamsMessage, rpcResp.Error.Message)

	errs, ok := rpcResp.Error.Data.([]string)
	require.True(t, ok)
	assert.NotEmpty(t, errs)
}

func TestHandle_PaymentTermsUnavailable(t *testing.T) {
	env := setup(t)
	env.handler.terms = &failingProvider{}

	resp := env.call(flight.Id, flightRequestBody, "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, OutcomeInternalError, resp.Outcome)
	assertRpcError(t, resp, codeInternalError, internalErrorMessage)
}

func assertRpcError(t *testing.T, resp *Response, code int, message string) {
	rpcResp, ok := resp.Body.(*RpcResponse)
	require.True(t, ok)
	require.NotNil(t, rpcResp.Error)
	assert.Nil(t, rpcResp.Result)
	assert.Equal(t, code, rpcResp.Error.Code)
	assert.Equal(t, message, rpcResp.Error.Message)
	assert.Nil(t, rpcResp.Error.Data)
}

type recordingExecutor struct {
	sync.Mutex

	delegate settlement.Executor
	err      error
	delay    time.Duration
	calls    int
}

func (e *recordingExecutor) Settle(ctx context.Context, s settlement.Settlement) (*string, error) {
	e.Lock()
	e.calls++
	err := e.err
	delay := e.delay
	e.Unlock()

	if err != nil {
		return nil, err
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.delegate.Settle(ctx, s)
}

func (e *recordingExecutor) Calls() int {
	e.Lock()
	defer e.Unlock()
	return e.calls
}

const brokenResourcePrice = 500

type brokenResource struct{}

func (r *brokenResource) Id() string {
	return brokenResourceId
}

func (r *brokenResource) Metadata() resource.Metadata {
	return resource.Metadata{AgentId: "broken-agent", Name: "Broken", Version: "0.0.1"}
}

func (r *brokenResource) PriceInfo() resource.PriceInfo {
	return resource.PriceInfo{Amount: brokenResourcePrice}
}

func (r *brokenResource) ParamsSchema() string {
	return `{"type": "object"}`
}

func (r *brokenResource) GenerateResponse(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return nil, errors.New("generation failed")
}

type failingProvider struct{}

func (p *failingProvider) GetPaymentTerms(_ context.Context, _ string) (*discovery.PaymentTerms, error) {
	return nil, errors.New("terms unavailable")
}
