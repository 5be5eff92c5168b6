package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/x402-resource-server/pkg/retry/backoff"
)

type testSleeper struct {
	sleepTimes []time.Duration
}

func (s *testSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	s.sleepTimes = append(s.sleepTimes, d)
	return ctx.Err() == nil
}

func useTestSleeper(t *testing.T) *testSleeper {
	ts := &testSleeper{}
	sleeperImpl = ts
	t.Cleanup(func() { sleeperImpl = &realSleeper{} })
	return ts
}

func TestRetry_EventualSuccess(t *testing.T) {
	ts := useTestSleeper(t)

	var calls int
	attempts, err := Retry(
		func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		},
		Limit(5),
		Backoff(backoff.BinaryExponential(10*time.Millisecond), 15*time.Millisecond),
	)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, ts.sleepTimes)
}

func TestRetry_OnlyRetriableErrors(t *testing.T) {
	retriableErr := errors.New("retriable")
	strategies := []Strategy{Limit(5), RetriableErrors(retriableErr)}

	attempts, err := Retry(func() error { return nil }, strategies...)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), attempts)

	attempts, err = Retry(func() error { return errors.New("unknown") }, strategies...)
	assert.Error(t, err)
	assert.Equal(t, uint(1), attempts)

	attempts, err = Retry(func() error { return retriableErr }, strategies...)
	assert.Equal(t, retriableErr, err)
	assert.Equal(t, uint(5), attempts)
}

func TestContextBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	start := time.Now()
	attempts, err := Retry(
		func() error {
			calls++
			if calls == 1 {
				cancel()
			}
			return errors.New("transient")
		},
		Limit(5),
		ContextBackoff(ctx, backoff.Constant(time.Minute), time.Minute),
	)
	assert.Error(t, err)
	assert.EqualValues(t, 1, attempts)
	assert.True(t, time.Since(start) < time.Second)
}
