package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
)

const (
	keyPrefix    = "x402:authorization:"
	idCounterKey = "x402:authorization:id"
)

type entry struct {
	Id        uint64    `json:"id"`
	Key       string    `json:"key"`
	Kind      uint8     `json:"kind"`
	SubjectId string    `json:"subjectId"`
	Payer     string    `json:"payer,omitempty"`
	Amount    uint64    `json:"amount"`
	Network   string    `json:"network"`
	Status    uint8     `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type store struct {
	client redis.UniversalClient
}

// New returns a redis backed authorization.Store. Records are written with
// SETNX and never expire.
func New(client redis.UniversalClient) authorization.Store {
	return &store{
		client: client,
	}
}

// Put implements authorization.Store.Put
func (s *store) Put(ctx context.Context, record *authorization.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	id, err := s.client.Incr(ctx, idCounterKey).Result()
	if err != nil {
		return errors.Wrap(err, "error allocating record id")
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	e := &entry{
		Id:        uint64(id),
		Key:       record.Key,
		Kind:      uint8(record.Kind),
		SubjectId: record.SubjectId,
		Payer:     record.Payer,
		Amount:    record.Amount,
		Network:   record.Network,
		Status:    uint8(record.Status),
		CreatedAt: createdAt,
	}

	serialized, err := json.Marshal(e)
	if err != nil {
		return err
	}

	inserted, err := s.client.SetNX(ctx, keyPrefix+record.Key, serialized, 0).Result()
	if err != nil {
		return errors.Wrap(err, "error inserting record")
	}
	if !inserted {
		return authorization.ErrAlreadyExists
	}

	fromEntry(e).CopyTo(record)
	return nil
}

// Get implements authorization.Store.Get
func (s *store) Get(ctx context.Context, key string) (*authorization.Record, error) {
	serialized, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, authorization.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting record")
	}

	var e entry
	if err := json.Unmarshal(serialized, &e); err != nil {
		return nil, errors.Wrap(err, "error decoding record")
	}
	return fromEntry(&e), nil
}

func fromEntry(e *entry) *authorization.Record {
	return &authorization.Record{
		Id:        e.Id,
		Key:       e.Key,
		Kind:      authorization.Kind(e.Kind),
		SubjectId: e.SubjectId,
		Payer:     e.Payer,
		Amount:    e.Amount,
		Network:   e.Network,
		Status:    authorization.Status(e.Status),
		CreatedAt: e.CreatedAt.UTC(),
	}
}
