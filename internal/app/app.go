package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"workbench/internal/config"
	"workbench/internal/domain"
	"workbench/internal/history"
	"workbench/internal/metrics"
	"workbench/internal/query"
	"workbench/internal/registry"
	"workbench/internal/schema"
	"workbench/internal/secret"
	"workbench/internal/service"
	"workbench/internal/storage"
)

// simulatedSeed keeps the simulated backend and prober deterministic across runs.
const simulatedSeed = 1

// App owns every workbench component and the subscriptions between them.
type App struct {
	cfg *config.Config

	Registry *registry.Registry
	Executor *query.Executor
	Queries  *service.QueryService
	Results  *service.ResultService
	History  *history.Ledger
	Schema   *schema.Cache
	Events   *service.Hub
	Metrics  *metrics.Collector

	db        *storage.DB
	live      *query.LiveBackend
	watcher   *schema.Watcher
	retention *service.Retention
	redis     *redis.Client
}

// New builds the application from cfg. Close releases what it opened.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, Events: service.NewHub(), Metrics: metrics.New(true)}

	connStore, histStore, err := a.openStores()
	if err != nil {
		return nil, err
	}

	// Registry
	regOpts := []registry.Option{}
	if cfg.Secrets.Backend == "keyring" {
		regOpts = append(regOpts, registry.WithSecrets(secret.NewKeyringStore(cfg.Secrets.Service)))
	}
	var backend query.Backend
	if cfg.Executor.Mode == "live" {
		a.live = query.NewLiveBackend(cfg.Executor.MaxRows, cfg.Executor.Timeout)
		backend = a.live
		regOpts = append(regOpts, registry.WithProber(registry.DriverProber{}))
	} else {
		backend = query.NewSimulatedBackend(simulatedSeed)
		regOpts = append(regOpts, registry.WithProber(registry.NewSimulatedProber(simulatedSeed)))
	}
	a.Registry = registry.New(storage.NewConnectionRecords(connStore), regOpts...)

	// History + query execution
	a.History = history.New(storage.NewHistoryRecords(histStore),
		history.WithNotifier(a.Events),
		history.WithClearAll(cfg.History.AllowClear),
	)
	a.Executor = query.NewExecutor(a.Registry, backend,
		query.WithRecorders(a.History, a.Metrics),
		query.WithSQLLogging(cfg.Logging.Debug()),
	)
	a.Results = service.NewResultService()
	a.Queries = service.NewQueryService(a.Executor, a.Results, a.Events)
	a.retention = service.NewRetention(a.History, cfg.History.PruneSchedule, cfg.History.RetentionDays)

	// Schema
	var loader schema.Loader = schema.SimulatedLoader{}
	if a.live != nil {
		loader = schema.NewDriverLoader(a.live)
	}
	a.Schema = schema.NewCache(a.Registry, loader, a.schemaStore())
	if cfg.Schema.WatchFiles {
		w, err := schema.NewWatcher(a.Schema)
		if err != nil {
			log.Printf("[Schema] file watching disabled: %v", err)
		} else {
			a.watcher = w
		}
	}

	a.subscribe()
	return a, nil
}

func (a *App) openStores() (connStore, histStore storage.RecordStore, err error) {
	if a.cfg.Storage.Driver == "memory" {
		log.Printf("[Registry] using in-memory storage")
		return storage.NewMemoryStore(storage.ConnectionSchema()), storage.NewMemoryStore(storage.HistorySchema()), nil
	}
	db, err := storage.New(a.cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	log.Printf("[Registry] using %s", db.Path())
	return storage.NewTableStore(db, storage.ConnectionSchema()), storage.NewTableStore(db, storage.HistorySchema()), nil
}

func (a *App) schemaStore() schema.Store {
	if a.cfg.Schema.Cache != "redis" {
		return schema.NewMemoryStore(a.cfg.Schema.TTL)
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Schema.Redis.Addr,
		Password: a.cfg.Schema.Redis.Password,
		DB:       a.cfg.Schema.Redis.DB,
	})
	log.Printf("[Schema] caching snapshots in redis at %s", a.cfg.Schema.Redis.Addr)
	return schema.NewRedisStore(a.redis, a.cfg.Schema.TTL)
}

// subscribe routes registry events to every component that holds per-connection state.
func (a *App) subscribe() {
	if a.live != nil {
		a.Registry.Subscribe(a.live.HandleConnectionEvent)
	}
	a.Registry.Subscribe(a.Schema.HandleConnectionEvent)
	if a.watcher != nil {
		a.Registry.Subscribe(a.watcher.HandleConnectionEvent)
	}
	a.Registry.Subscribe(a.Results.HandleConnectionEvent)
	a.Registry.Subscribe(a.Metrics.HandleConnectionEvent)
	a.Registry.Subscribe(func(ev domain.ConnectionEvent) {
		a.Events.Emit(context.Background(), ConnectionEventName(ev.Kind), ev.Connection)
	})
}

// ConnectionEventName is the notifier event name for a registry state change.
func ConnectionEventName(kind domain.ConnectionEventKind) string {
	return "connection:" + string(kind)
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Start resumes watching the active sqlite connection and schedules history pruning.
func (a *App) Start(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
	}
	if a.watcher != nil {
		if active, ok, err := a.Registry.Active(ctx); err != nil {
			log.Printf("[Schema] could not resolve active connection: %v", err)
		} else if ok {
			if err := a.watcher.Watch(active); err != nil {
				log.Printf("[Schema] watch %q: %v", active.Name, err)
			}
		}
	}
	return a.retention.Start(ctx)
}

// Close stops background work and releases connections, in reverse start order.
func (a *App) Close(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	a.retention.Stop(stopCtx)

	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			log.Printf("[Schema] close watcher: %v", err)
		}
	}
	if a.live != nil {
		a.live.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
