package commands

import (
	"context"
	"fmt"

	"github.com/quantfeed/pulse/internal/finviz"
	"github.com/quantfeed/pulse/internal/market"
	"github.com/quantfeed/pulse/internal/snapshot"
	"github.com/quantfeed/pulse/internal/warehouse"
	"github.com/quantfeed/pulse/pkg/config"
	"github.com/quantfeed/pulse/pkg/database"
	"github.com/quantfeed/pulse/pkg/httputil"
	"github.com/quantfeed/pulse/pkg/logger"
	"github.com/quantfeed/pulse/pkg/redis"
)

// stack holds the wired application components shared by the CLI
// commands. Database and warehouse are nil when DATABASE_URL is unset;
// the snapshot store then runs on local disk alone.
type stack struct {
	cfg       *config.Config
	logger    *logger.Logger
	db        *database.DB
	redis     *redis.Client
	local     *snapshot.LocalStore
	store     snapshot.Store
	warehouse *warehouse.Repository
	service   *market.Service
}

// loadConfig reads the environment configuration and applies the
// persistent CLI flags on top: --config picks the env file and
// --verbose forces debug logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// buildStack wires config, logging, storage and the market service
func buildStack(ctx context.Context) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)

	local, err := snapshot.NewLocalStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	var db *database.DB
	var wh *warehouse.Repository
	stores := []snapshot.Store{}

	if cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		pg := snapshot.NewPostgresStore(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure snapshot schema: %w", err)
		}

		wh = warehouse.NewRepository(db.Pool)
		if err := wh.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure history schema: %w", err)
		}

		stores = append(stores, pg)
		log.Info("Connected to database")
	}

	stores = append(stores, local)
	store := snapshot.NewFallback(log, stores...)

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without shared cache")
		redisClient = nil
	}

	var cache market.Cache
	if redisClient != nil && redisClient.Enabled() {
		cache = market.NewRedisCache(redis.NewCache(redisClient, "pulse"))
	} else {
		cache = market.NewMemoryCache()
	}

	httpClient := httputil.New(cfg, log)
	if redisClient != nil && redisClient.Enabled() {
		// Shared upstream rate limit across processes
		httpClient = httpClient.WithRateLimiter(redis.NewRateLimiter(redisClient, "pulse"), redis.FinvizRateLimit)
	}
	source := finviz.NewClient(cfg, httpClient, log)

	service := market.NewService(source, store, cache, log, cfg.Storage.IncludeRaw)
	if wh != nil {
		service = service.WithRecorder(wh)
	}

	return &stack{
		cfg:       cfg,
		logger:    log,
		db:        db,
		redis:     redisClient,
		local:     local,
		store:     store,
		warehouse: wh,
		service:   service,
	}, nil
}

// Close releases the stack's external connections
func (s *stack) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}
