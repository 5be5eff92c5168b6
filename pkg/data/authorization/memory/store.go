package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
)

type store struct {
	mu      sync.Mutex
	records map[string]*authorization.Record
	last    uint64
}

// New returns a new in memory authorization.Store
func New() authorization.Store {
	return &store{
		records: make(map[string]*authorization.Record),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make(map[string]*authorization.Record)
	s.last = 0
	s.mu.Unlock()
}

// Put implements authorization.Store.Put
func (s *store) Put(_ context.Context, record *authorization.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.Key]; ok {
		return authorization.ErrAlreadyExists
	}

	s.last++
	record.Id = s.last
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	cloned := record.Clone()
	s.records[record.Key] = &cloned
	return nil
}

// Get implements authorization.Store.Get
func (s *store) Get(_ context.Context, key string) (*authorization.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, authorization.ErrNotFound
	}

	cloned := record.Clone()
	return &cloned, nil
}
