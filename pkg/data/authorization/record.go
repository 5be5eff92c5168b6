package authorization

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies which proof form a consumed authorization came from
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNonce
	KindReference
)

// Status describes how the authorization was accepted before being consumed
type Status uint8

const (
	StatusUnknown Status = iota
	StatusVerified
	StatusLedgerConfirmed
	StatusSettled
)

const (
	noncePrefix     = "nonce:"
	referencePrefix = "tx:"
)

// Record is an append-only entry marking a payment authorization as spent.
// Exactly one record ever exists per key.
type Record struct {
	Id uint64

	Key  string
	Kind Kind

	SubjectId string
	Payer     string
	Amount    uint64
	Network   string

	Status Status

	CreatedAt time.Time
}

// NonceKey returns the replay key for an EIP-3009 authorization. Nonces are
// scoped to the authorizer, so the payer is part of the key.
func NonceKey(payer, nonce string) string {
	return noncePrefix + normalizeHex(payer) + ":" + normalizeHex(nonce)
}

// ReferenceKey returns the replay key for a settled transaction reference
func ReferenceKey(reference string) string {
	return referencePrefix + normalizeHex(reference)
}

func normalizeHex(value string) string {
	value = strings.ToLower(value)
	if !strings.HasPrefix(value, "0x") {
		value = "0x" + value
	}
	return value
}

func (r *Record) Validate() error {
	switch r.Kind {
	case KindNonce:
		if !strings.HasPrefix(r.Key, noncePrefix) || len(r.Key) == len(noncePrefix) {
			return errors.New("nonce key is required")
		}
		if r.Status != StatusVerified {
			return errors.New("nonce authorizations must be verified")
		}
	case KindReference:
		if !strings.HasPrefix(r.Key, referencePrefix) || len(r.Key) == len(referencePrefix) {
			return errors.New("reference key is required")
		}
		if r.Status != StatusLedgerConfirmed && r.Status != StatusSettled {
			return errors.New("reference authorizations must be ledger confirmed or settled")
		}
	default:
		return errors.New("invalid kind")
	}

	if len(r.SubjectId) == 0 {
		return errors.New("subject id is required")
	}

	if r.Amount == 0 {
		return errors.New("amount must be positive")
	}
	if r.Amount > math.MaxInt64 {
		return errors.New("amount exceeds maximum")
	}

	if len(r.Network) == 0 {
		return errors.New("network is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id:        r.Id,
		Key:       r.Key,
		Kind:      r.Kind,
		SubjectId: r.SubjectId,
		Payer:     r.Payer,
		Amount:    r.Amount,
		Network:   r.Network,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id
	dst.Key = r.Key
	dst.Kind = r.Kind
	dst.SubjectId = r.SubjectId
	dst.Payer = r.Payer
	dst.Amount = r.Amount
	dst.Network = r.Network
	dst.Status = r.Status
	dst.CreatedAt = r.CreatedAt
}

func (k Kind) String() string {
	switch k {
	case KindNonce:
		return "nonce"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusLedgerConfirmed:
		return "ledger_confirmed"
	case StatusSettled:
		return "settled"
	}
	return "unknown"
}
