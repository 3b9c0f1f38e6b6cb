package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendsmart/internal/amqp"
	"spendsmart/internal/auth"
	"spendsmart/internal/cache"
	"spendsmart/internal/config"
	"spendsmart/internal/core"
	"spendsmart/internal/log"
	"spendsmart/internal/ports"
	"spendsmart/internal/services"
	"spendsmart/internal/storage"
	boltstore "spendsmart/internal/storage/bolt"
	"spendsmart/internal/storage/dynamo"
	"spendsmart/internal/storage/memory"
	"spendsmart/internal/storage/postgres"
)

const cacheCleanupInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

var _ Factory = (*DefaultFactory)(nil)

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured store and, when AMQP_URL is set, the
// AMQP client. An unreachable broker is logged and the backend runs without
// events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
			publisher = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	res := &Result{Store: store, Publisher: publisher}
	res.Cleanup = func() error {
		var errs []error
		if publisher != nil {
			errs = append(errs, publisher.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, cfg Config) (ports.Store, error) {
	switch cfg.Type {
	case MemoryBackend:
		dataDir := cfg.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir), nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case BoltBackend:
		repo, err := boltstore.Open(cfg.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize BoltDB repository: %w", err)
		}
		f.logger.Info("Initialized BoltDB backend", "db_path", cfg.BoltDBPath)
		return repo, nil

	case PostgresBackend:
		store, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL backend")
		return store, nil

	case DynamoBackend:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
		}
		store := dynamo.NewStore(dynamo.WithDynamoDBClient(client), dynamo.WithTableName(cfg.DynamoTable))
		if err := store.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare DynamoDB table: %w", err)
		}
		f.logger.Info("Initialized DynamoDB backend",
			"table", cfg.DynamoTable,
			"region", cfg.AWSRegion)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// Ledger is a ready service together with the resources it owns.
type Ledger struct {
	Service   *services.LedgerService
	Store     ports.Store
	Publisher *amqp.Client

	caches *cache.Manager
}

// Close stops the cache janitor, closes the caches and then the store and
// the AMQP client.
func (l *Ledger) Close() error {
	l.caches.Stop()
	return l.Service.Close()
}

// NewLedger opens the backend described by appCfg and wires caches, event
// publishing and session tokens into a LedgerService.
func NewLedger(ctx context.Context, appCfg *config.Config, logger *log.Logger) (*Ledger, error) {
	cfg, err := FromAppConfig(appCfg)
	if err != nil {
		return nil, err
	}
	res, err := NewFactory(logger).CreateBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	txCache, err := cache.New[[]core.Transaction](appCfg.CacheBackend, appCfg.CacheSize, appCfg.CacheTTL)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	budgetCache, err := cache.New[map[string]core.Money](appCfg.CacheBackend, appCfg.CacheSize, appCfg.CacheTTL)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	manager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	manager.Register(txCache)
	manager.Register(budgetCache)
	manager.StartCleanup(cacheCleanupInterval)

	opts := []services.Option{
		services.WithCaches(txCache, budgetCache),
		services.WithLogger(logger),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	if appCfg.AuthEnabled() {
		opts = append(opts, services.WithTokens(auth.NewTokens(appCfg.JWTSecret, appCfg.SessionTTL)))
	}

	return &Ledger{
		Service:   services.NewLedgerService(res.Store, opts...),
		Store:     res.Store,
		Publisher: res.Publisher,
		caches:    manager,
	}, nil
}
