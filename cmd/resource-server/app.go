package main

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/x402-resource-server/pkg/cache"
	"github.com/code-payments/x402-resource-server/pkg/data/authorization"
	memory_authorization_store "github.com/code-payments/x402-resource-server/pkg/data/authorization/memory"
	postgres_authorization_store "github.com/code-payments/x402-resource-server/pkg/data/authorization/postgres"
	redis_authorization_store "github.com/code-payments/x402-resource-server/pkg/data/authorization/redis"
	pg "github.com/code-payments/x402-resource-server/pkg/database/postgres"
	rdb "github.com/code-payments/x402-resource-server/pkg/database/redis"
	"github.com/code-payments/x402-resource-server/pkg/discovery"
	"github.com/code-payments/x402-resource-server/pkg/http/app"
	"github.com/code-payments/x402-resource-server/pkg/resource"
	"github.com/code-payments/x402-resource-server/pkg/resource/flight"
	"github.com/code-payments/x402-resource-server/pkg/resource/hotel"
	"github.com/code-payments/x402-resource-server/pkg/resource/tourism"
	"github.com/code-payments/x402-resource-server/pkg/x402"
	"github.com/code-payments/x402-resource-server/pkg/x402/ledger"
	"github.com/code-payments/x402-resource-server/pkg/x402/ledger/ethclient"
	"github.com/code-payments/x402-resource-server/pkg/x402/replay"
	"github.com/code-payments/x402-resource-server/pkg/x402/server"
	"github.com/code-payments/x402-resource-server/pkg/x402/settlement"
)

const agentCardCacheBudget = 1024

type resourceServerApp struct {
	log *logrus.Entry

	server *server.Server

	db          *sql.DB
	redisClient *redis.Client
	ledgers     []*ethclient.Client

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newResourceServerApp() *resourceServerApp {
	return &resourceServerApp{
		log:        logrus.StandardLogger().WithField("type", "resource-server/app"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *resourceServerApp) Init(appConfig app.Config, _ *newrelic.Application) error {
	ctx := context.Background()

	config, err := decodeConfig(appConfig)
	if err != nil {
		return err
	}

	networks := x402.DefaultNetworks()
	network, err := networks.Get(config.Network)
	if err != nil {
		return errors.Wrapf(err, "invalid network %s", config.Network)
	}

	registry, err := resource.NewRegistry(flight.New(), hotel.New(), tourism.New())
	if err != nil {
		return errors.Wrap(err, "error creating resource registry")
	}

	var terms discovery.Provider = discovery.NewStaticProvider(registry, network, config.Recipient)
	if len(config.AgentCardUrls) > 0 {
		terms, err = discovery.NewAgentCardProvider(
			config.AgentCardUrls,
			cache.NewCache(agentCardCacheBudget, config.AgentCardCacheTtl),
			terms,
		)
		if err != nil {
			return errors.Wrap(err, "error creating agent card provider")
		}
	}

	store, err := a.newAuthorizationStore(ctx, config)
	if err != nil {
		return err
	}

	ledgerClients := make(map[string]ledger.Client)
	for networkId, rpcUrl := range config.LedgerRpcUrls {
		if _, err := networks.Get(networkId); err != nil {
			return errors.Wrapf(err, "ledger rpc configured for unsupported network %s", networkId)
		}

		client, err := ethclient.Dial(ctx, rpcUrl)
		if err != nil {
			return err
		}
		a.ledgers = append(a.ledgers, client)
		ledgerClients[networkId] = client
	}

	var executor settlement.Executor
	switch settlement.Mode(config.SettlementMode) {
	case settlement.ModeFacilitator:
		opts, err := config.facilitatorOptions()
		if err != nil {
			return err
		}
		executor = settlement.NewFacilitatorExecutor(config.FacilitatorUrl, config.FacilitatorTimeout, opts...)
	default:
		executor = settlement.NewSimulatedExecutor()
	}

	a.log.WithFields(logrus.Fields{
		"network":         network.Id,
		"recipient":       config.Recipient,
		"settlement_mode": config.SettlementMode,
		"store_backend":   config.StoreBackend,
		"ledger_networks": len(ledgerClients),
	}).Info("initialized resource server")

	handler := server.NewHandler(
		registry,
		terms,
		networks,
		replay.NewGuard(store),
		ledger.NewOracle(ledgerClients, config.LedgerTimeout),
		executor,
		server.WithEnvConfigs(),
	)
	a.server = server.NewServer(handler)

	return nil
}

func (a *resourceServerApp) newAuthorizationStore(ctx context.Context, config *resourceServerConfig) (authorization.Store, error) {
	switch config.StoreBackend {
	case storeBackendPostgres:
		pgConfig := pg.Config{
			User:               config.Postgres.User,
			Host:               config.Postgres.Host,
			Password:           config.Postgres.Password,
			Port:               config.Postgres.Port,
			DbName:             config.Postgres.DbName,
			MaxOpenConnections: config.Postgres.MaxOpenConnections,
			MaxIdleConnections: config.Postgres.MaxIdleConnections,
		}

		var db *sql.DB
		var err error
		if config.Postgres.UseAwsIam {
			awsConfig, loadErr := external.LoadDefaultAWSConfig()
			if loadErr != nil {
				return nil, errors.Wrap(loadErr, "error loading aws config")
			}
			db, err = pg.NewWithAwsIam(pgConfig, awsConfig)
		} else {
			db, err = pg.NewWithUsernameAndPassword(pgConfig)
		}
		if err != nil {
			return nil, err
		}

		a.db = db
		return postgres_authorization_store.New(db), nil
	case storeBackendRedis:
		client, err := rdb.New(ctx, rdb.Config{
			Address:     config.Redis.Address,
			Password:    config.Redis.Password,
			DB:          config.Redis.DB,
			DialTimeout: config.Redis.DialTimeout,
		})
		if err != nil {
			return nil, err
		}

		a.redisClient = client
		return redis_authorization_store.New(client), nil
	default:
		a.log.Warn("using in memory authorization store, consumed payments are lost on restart")
		return memory_authorization_store.New(), nil
	}
}

// GetHandlers implements app.App.GetHandlers
func (a *resourceServerApp) GetHandlers() map[string]http.HandlerFunc {
	return a.server.GetHandlers()
}

// ShutdownChan implements app.App.ShutdownChan
func (a *resourceServerApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *resourceServerApp) Stop() {
	a.shutdownOnce.Do(func() {
		for _, client := range a.ledgers {
			client.Close()
		}
		if a.redisClient != nil {
			if err := a.redisClient.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing redis client")
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing db")
			}
		}

		close(a.shutdownCh)
	})
}
