package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/code-payments/x402-resource-server/pkg/http/app"
	"github.com/code-payments/x402-resource-server/pkg/x402"
	"github.com/code-payments/x402-resource-server/pkg/x402/settlement"
)

const (
	storeBackendMemory   = "memory"
	storeBackendPostgres = "postgres"
	storeBackendRedis    = "redis"
)

type postgresConfig struct {
	Host               string `mapstructure:"host"`
	Port               string `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	DbName             string `mapstructure:"db_name"`
	UseAwsIam          bool   `mapstructure:"use_aws_iam"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

type redisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// resourceServerConfig is decoded from the "app" section of the process config
type resourceServerConfig struct {
	Network   string `mapstructure:"network"`
	Recipient string `mapstructure:"recipient"`

	// Resources listed here are priced by their remote agent card instead of
	// the local price table
	AgentCardUrls     map[string]string `mapstructure:"agent_card_urls"`
	AgentCardCacheTtl time.Duration     `mapstructure:"agent_card_cache_ttl"`

	// Ledger reference proofs are rejected on networks without an RPC url
	LedgerRpcUrls map[string]string `mapstructure:"ledger_rpc_urls"`
	LedgerTimeout time.Duration     `mapstructure:"ledger_timeout"`

	SettlementMode     string        `mapstructure:"settlement_mode"`
	FacilitatorUrl     string        `mapstructure:"facilitator_url"`
	FacilitatorTimeout time.Duration `mapstructure:"facilitator_timeout"`

	// Base64 encoded ed25519 seed or private key used to sign bearer tokens
	// for the facilitator. Calls are unauthenticated when unset.
	FacilitatorKeyId      string `mapstructure:"facilitator_key_id"`
	FacilitatorPrivateKey string `mapstructure:"facilitator_private_key"`

	StoreBackend string         `mapstructure:"store_backend"`
	Postgres     postgresConfig `mapstructure:"postgres"`
	Redis        redisConfig    `mapstructure:"redis"`
}

var defaultResourceServerConfig = resourceServerConfig{
	Network:            x402.NetworkBaseSepolia,
	AgentCardCacheTtl:  5 * time.Minute,
	LedgerTimeout:      5 * time.Second,
	SettlementMode:     string(settlement.ModeSimulated),
	FacilitatorTimeout: 10 * time.Second,
	StoreBackend:       storeBackendMemory,
	Postgres: postgresConfig{
		Port:               "5432",
		MaxOpenConnections: 10,
		MaxIdleConnections: 5,
	},
	Redis: redisConfig{
		Address:     "localhost:6379",
		DialTimeout: 5 * time.Second,
	},
}

func decodeConfig(raw app.Config) (*resourceServerConfig, error) {
	config := defaultResourceServerConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "error decoding app config")
	}

	if len(config.Recipient) == 0 {
		return nil, errors.New("recipient is required")
	}

	mode, err := settlement.ParseMode(config.SettlementMode)
	if err != nil {
		return nil, err
	}
	if mode == settlement.ModeFacilitator && len(config.FacilitatorUrl) == 0 {
		return nil, errors.New("facilitator url is required in facilitator settlement mode")
	}

	if (len(config.FacilitatorKeyId) == 0) != (len(config.FacilitatorPrivateKey) == 0) {
		return nil, errors.New("facilitator key id and private key must be set together")
	}
	if len(config.FacilitatorPrivateKey) > 0 {
		if _, err := decodeEd25519Key(config.FacilitatorPrivateKey); err != nil {
			return nil, err
		}
	}

	switch config.StoreBackend {
	case storeBackendMemory, storeBackendPostgres, storeBackendRedis:
	default:
		return nil, errors.Errorf("unsupported store backend: %s", config.StoreBackend)
	}

	return &config, nil
}

func (c *resourceServerConfig) facilitatorOptions() ([]settlement.FacilitatorOption, error) {
	if len(c.FacilitatorKeyId) == 0 {
		return nil, nil
	}

	key, err := decodeEd25519Key(c.FacilitatorPrivateKey)
	if err != nil {
		return nil, err
	}

	provider, err := settlement.NewJwtAuthProvider(c.FacilitatorKeyId, key)
	if err != nil {
		return nil, err
	}
	return []settlement.FacilitatorOption{settlement.WithAuthProvider(provider)}, nil
}

func decodeEd25519Key(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid facilitator private key encoding")
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.Errorf("invalid facilitator private key length: %d", len(raw))
	}
}
