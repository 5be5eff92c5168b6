package tests

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
)

const testPayer = "0x857b06519E91e3A54538791bDbb0E22373e36b66"

func RunTests(t *testing.T, s authorization.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s authorization.Store){
		testRoundTrip,
		testDuplicateKey,
		testKindsDoNotCollide,
		testConcurrentPut,
		testInvalidRecord,
		testAmountBounds,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s authorization.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		key := authorization.NonceKey(testPayer, "0x7a3f0bc1d6f2e4a0bd7a3f0bc1d6f2e4a0bd7a3f0bc1d6f2e4a0bd7a3f0bc1d6")

		_, err := s.Get(ctx, key)
		assert.Equal(t, authorization.ErrNotFound, err)

		expected := &authorization.Record{
			Key:       key,
			Kind:      authorization.KindNonce,
			SubjectId: "flight",
			Payer:     testPayer,
			Amount:    10000,
			Network:   "eip155:84532",
			Status:    authorization.StatusVerified,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		cloned := expected.Clone()

		require.NoError(t, s.Put(ctx, expected))
		assert.True(t, expected.Id > 0)

		actual, err := s.Get(ctx, key)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
		assert.Equal(t, expected.Id, actual.Id)
	})
}

func testDuplicateKey(t *testing.T, s authorization.Store) {
	t.Run("testDuplicateKey", func(t *testing.T) {
		ctx := context.Background()

		reference := "0x5f2c6bd1a4e07f3398c1ac2df1b0e7ce8e95ac1bb2e0e3f7a9d1d6c8e2b4a6f0"

		first := &authorization.Record{
			Key:       authorization.ReferenceKey(reference),
			Kind:      authorization.KindReference,
			SubjectId: "hotel",
			Amount:    15000,
			Network:   "eip155:11155111",
			Status:    authorization.StatusLedgerConfirmed,
		}
		require.NoError(t, s.Put(ctx, first))

		second := first.Clone()
		second.Id = 0
		second.SubjectId = "tourism"
		second.Amount = 20000
		assert.Equal(t, authorization.ErrAlreadyExists, s.Put(ctx, &second))

		actual, err := s.Get(ctx, first.Key)
		require.NoError(t, err)
		assert.Equal(t, "hotel", actual.SubjectId)
		assert.EqualValues(t, 15000, actual.Amount)
	})
}

func testKindsDoNotCollide(t *testing.T, s authorization.Store) {
	t.Run("testKindsDoNotCollide", func(t *testing.T) {
		ctx := context.Background()

		value := "0x1111111111111111111111111111111111111111111111111111111111111111"

		require.NoError(t, s.Put(ctx, &authorization.Record{
			Key:       authorization.NonceKey(testPayer, value),
			Kind:      authorization.KindNonce,
			SubjectId: "flight",
			Amount:    10000,
			Network:   "eip155:84532",
			Status:    authorization.StatusVerified,
		}))
		require.NoError(t, s.Put(ctx, &authorization.Record{
			Key:       authorization.ReferenceKey(value),
			Kind:      authorization.KindReference,
			SubjectId: "flight",
			Amount:    10000,
			Network:   "eip155:84532",
			Status:    authorization.StatusLedgerConfirmed,
		}))
	})
}

func testConcurrentPut(t *testing.T, s authorization.Store) {
	t.Run("testConcurrentPut", func(t *testing.T) {
		ctx := context.Background()

		const workers = 32
		key := authorization.NonceKey(testPayer, "0x2222222222222222222222222222222222222222222222222222222222222222")

		var wg sync.WaitGroup
		results := make(chan error, workers)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				<-start
				results <- s.Put(ctx, &authorization.Record{
					Key:       key,
					Kind:      authorization.KindNonce,
					SubjectId: fmt.Sprintf("worker-%d", i),
					Amount:    10000,
					Network:   "eip155:84532",
					Status:    authorization.StatusVerified,
				})
			}(i)
		}
		close(start)
		wg.Wait()
		close(results)

		var succeeded, rejected int
		for err := range results {
			switch err {
			case nil:
				succeeded++
			case authorization.ErrAlreadyExists:
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, workers-1, rejected)
	})
}

func testInvalidRecord(t *testing.T, s authorization.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		record := &authorization.Record{
			Key:       authorization.NonceKey(testPayer, "0x3333"),
			Kind:      authorization.KindNonce,
			SubjectId: "flight",
			Network:   "eip155:84532",
			Status:    authorization.StatusVerified,
		}
		assert.Error(t, s.Put(ctx, record))

		_, err := s.Get(ctx, record.Key)
		assert.Equal(t, authorization.ErrNotFound, err)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *authorization.Record) {
	assert.Equal(t, obj1.Key, obj2.Key)
	assert.Equal(t, obj1.Kind, obj2.Kind)
	assert.Equal(t, obj1.SubjectId, obj2.SubjectId)
	assert.Equal(t, obj1.Payer, obj2.Payer)
	assert.Equal(t, obj1.Amount, obj2.Amount)
	assert.Equal(t, obj1.Network, obj2.Network)
	assert.Equal(t, obj1.Status, obj2.Status)
	assert.Equal(t, obj1.CreatedAt.Unix(), obj2.CreatedAt.Unix())
}

func testAmountBounds(t *testing.T, s authorization.Store) {
	t.Run("testAmountBounds", func(t *testing.T) {
		ctx := context.Background()

		largest := &authorization.Record{
			Key:       authorization.ReferenceKey("0x4444444444444444444444444444444444444444444444444444444444444444"),
			Kind:      authorization.KindReference,
			SubjectId: "tourism",
			Amount:    math.MaxInt64,
			Network:   "eip155:11155111",
			Status:    authorization.StatusSettled,
		}
		require.NoError(t, s.Put(ctx, largest))

		actual, err := s.Get(ctx, largest.Key)
		require.NoError(t, err)
		assert.EqualValues(t, uint64(math.MaxInt64), actual.Amount)
		assert.Equal(t, authorization.StatusSettled, actual.Status)

		overflow := &authorization.Record{
			Key:       authorization.ReferenceKey("0x5555555555555555555555555555555555555555555555555555555555555555"),
			Kind:      authorization.KindReference,
			SubjectId: "tourism",
			Amount:    math.MaxInt64 + 1,
			Network:   "eip155:11155111",
			Status:    authorization.StatusSettled,
		}
		assert.Error(t, s.Put(ctx, overflow))

		_, err = s.Get(ctx, overflow.Key)
		assert.Equal(t, authorization.ErrNotFound, err)
	})
}
