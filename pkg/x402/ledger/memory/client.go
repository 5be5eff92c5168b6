package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/x402/ledger"
)

var errSimulated = errors.New("simulated ledger failure")

// Client is an in memory ledger used for testing and local development
type Client struct {
	mu       sync.Mutex
	outcomes map[string]ledger.Outcome
	err      error
	delay    time.Duration
	calls    int
}

func NewClient() *Client {
	return &Client{
		outcomes: make(map[string]ledger.Outcome),
	}
}

// SetOutcome records the outcome returned for a reference
func (c *Client) SetOutcome(reference string, outcome ledger.Outcome) {
	c.mu.Lock()
	c.outcomes[strings.ToLower(reference)] = outcome
	c.mu.Unlock()
}

// SimulateErrors makes subsequent lookups fail
func (c *Client) SimulateErrors(enabled bool) {
	c.mu.Lock()
	if enabled {
		c.err = errSimulated
	} else {
		c.err = nil
	}
	c.mu.Unlock()
}

// SimulateDelay makes subsequent lookups block for d or until ctx is done
func (c *Client) SimulateDelay(d time.Duration) {
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
}

// Calls returns the number of lookups made
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// GetTransactionOutcome implements ledger.Client.GetTransactionOutcome
func (c *Client) GetTransactionOutcome(ctx context.Context, reference string) (*ledger.Outcome, error) {
	c.mu.Lock()
	c.calls++
	delay := c.delay
	err := c.err
	outcome, ok := c.outcomes[strings.ToLower(reference)]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return &outcome, nil
}
