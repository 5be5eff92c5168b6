package server

import (
	"time"

	"github.com/code-payments/x402-resource-server/pkg/config"
	"github.com/code-payments/x402-resource-server/pkg/config/env"
	"github.com/code-payments/x402-resource-server/pkg/config/memory"
	"github.com/code-payments/x402-resource-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "X402_SERVER_"

	BaseUrlConfigEnvName = envConfigPrefix + "BASE_URL"
	defaultBaseUrl       = "http://localhost:8080"

	MaxBodySizeConfigEnvName = envConfigPrefix + "MAX_BODY_SIZE"
	defaultMaxBodySize       = 64 << 10

	SettlementTimeoutConfigEnvName = envConfigPrefix + "SETTLEMENT_TIMEOUT"
	defaultSettlementTimeout       = 30 * time.Second

	RateLimitPerSecondConfigEnvName = envConfigPrefix + "RATE_LIMIT_PER_SECOND"
	defaultRateLimitPerSecond       = 5.0

	RateLimitBurstConfigEnvName = envConfigPrefix + "RATE_LIMIT_BURST"
	defaultRateLimitBurst       = 10

	EnableAgentCardsConfigEnvName = envConfigPrefix + "ENABLE_AGENT_CARDS"
	defaultEnableAgentCards       = true
)

type conf struct {
	baseUrl            config.String
	maxBodySize        config.Uint64
	settlementTimeout  config.Duration
	rateLimitPerSecond config.Float64
	rateLimitBurst     config.Uint64
	enableAgentCards   config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			baseUrl:            env.NewStringConfig(BaseUrlConfigEnvName, defaultBaseUrl),
			maxBodySize:        env.NewUint64Config(MaxBodySizeConfigEnvName, defaultMaxBodySize),
			settlementTimeout:  env.NewDurationConfig(SettlementTimeoutConfigEnvName, defaultSettlementTimeout),
			rateLimitPerSecond: env.NewFloat64Config(RateLimitPerSecondConfigEnvName, defaultRateLimitPerSecond),
			rateLimitBurst:     env.NewUint64Config(RateLimitBurstConfigEnvName, defaultRateLimitBurst),
			enableAgentCards:   env.NewBoolConfig(EnableAgentCardsConfigEnvName, defaultEnableAgentCards),
		}
	}
}

type testOverrides struct {
	baseUrl            string
	maxBodySize        uint64
	settlementTimeout  time.Duration
	rateLimitPerSecond float64
	rateLimitBurst     uint64
	disableAgentCards  bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			baseUrl:            wrapper.NewStringConfig(memory.NewConfig(overrides.baseUrl), defaultBaseUrl),
			maxBodySize:        wrapper.NewUint64Config(memory.NewConfig(overrides.maxBodySize), defaultMaxBodySize),
			settlementTimeout:  wrapper.NewDurationConfig(memory.NewConfig(overrides.settlementTimeout), defaultSettlementTimeout),
			rateLimitPerSecond: wrapper.NewFloat64Config(memory.NewConfig(overrides.rateLimitPerSecond), defaultRateLimitPerSecond),
			rateLimitBurst:     wrapper.NewUint64Config(memory.NewConfig(overrides.rateLimitBurst), defaultRateLimitBurst),
			enableAgentCards:   wrapper.NewBoolConfig(memory.NewConfig(!overrides.disableAgentCards), defaultEnableAgentCards),
		}
	}
}
