package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ideaforge/engine/api/handlers"
	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/assembly"
	"github.com/ideaforge/engine/config"
	appcache "github.com/ideaforge/engine/internal/cache"
	appdatabase "github.com/ideaforge/engine/internal/database"
	"github.com/ideaforge/engine/internal/metrics"
	"github.com/ideaforge/engine/internal/server"
	"github.com/ideaforge/engine/internal/telemetry"
	"github.com/ideaforge/engine/instructions"
	"github.com/ideaforge/engine/llm"
	"github.com/ideaforge/engine/llm/providers/claude"
	"github.com/ideaforge/engine/llm/providers/openaicompat"
	"github.com/ideaforge/engine/pipeline"
	"github.com/ideaforge/engine/review"
	"github.com/ideaforge/engine/stages"
	"github.com/ideaforge/engine/types"
)

// Server owns every wired component and the HTTP manager exposing them.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	telemetry *telemetry.Providers

	db               *gorm.DB
	dbPool           *appdatabase.PoolManager
	metricsCollector *metrics.Collector
	instructionStore *instructions.Store
	instructionWatch *instructions.Watcher
	cacheManager     *appcache.Manager
	pool             *llm.Pool

	httpManager *server.Manager

	wg sync.WaitGroup
}

// NewServer wires every component named in the engine's configuration and
// returns a Server ready to Start. It does not bind any socket.
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: providers,
	}

	s.metricsCollector = metrics.NewCollector("ideaforge", logger)

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.db = db

	dbPool, err := appdatabase.NewPoolManager(db, appdatabase.PoolConfig{
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init database pool: %w", err)
	}
	s.dbPool = dbPool

	instrStore, err := instructions.NewStore(cfg.Instructions.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("load instructions: %w", err)
	}
	s.instructionStore = instrStore

	if cfg.Instructions.ReloadEnabled {
		watcher, err := instructions.NewWatcher(instrStore, cfg.Instructions.Dir, cfg.Instructions.ReloadDebounce, logger)
		if err != nil {
			logger.Warn("instruction hot-reload unavailable, continuing without it", zap.Error(err))
		} else {
			s.instructionWatch = watcher
		}
	}

	cacheManager, err := appcache.NewManager(appcache.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DefaultTTL:   10 * time.Minute,
	}, logger)
	if err != nil {
		logger.Warn("assembly cache unavailable, continuing uncached", zap.Error(err))
	}
	s.cacheManager = cacheManager
	var assemblyCache *assembly.Cache
	if cacheManager != nil {
		assemblyCache = assembly.NewCache(cacheManager)
	}

	s.pool = llm.NewPool(logger)
	registerProviders(s.pool, cfg, logger)

	artifactStore := artifact.NewGormStore(db, logger)
	assembler := assembly.NewAssembler(artifactStore, instrStore, assemblyCache)

	reviewStore := review.NewGormStore(db)
	reviewRegistry, err := review.NewRegistry(context.Background(), reviewStore, logger)
	if err != nil {
		return nil, fmt.Errorf("init review registry: %w", err)
	}

	coordinator := pipeline.NewCoordinator(artifactStore)

	requirementsSvc := stages.NewService(artifactStore, assembler, s.pool, reviewRegistry, logger)
	planningSvc := stages.NewService(artifactStore, assembler, s.pool, reviewRegistry, logger)
	storiesSvc := stages.NewService(artifactStore, assembler, s.pool, reviewRegistry, logger)
	promptSvc := stages.NewService(artifactStore, assembler, s.pool, reviewRegistry, logger)

	router := handlers.NewRouter(
		handlers.NewStageHandler(types.StageRequirements, requirementsSvc, logger),
		handlers.NewStageHandler(types.StagePlanning, planningSvc, logger),
		handlers.NewStageHandler(types.StageStories, storiesSvc, logger),
		handlers.NewStageHandler(types.StagePrompt, promptSvc, logger),
		handlers.NewReviewHandler(reviewRegistry, logger),
		handlers.NewHealthHandler(s.pool, reviewRegistry, logger),
		handlers.NewProgressHandler(coordinator, logger),
	)

	mux := router.Mux()

	handler := Chain(mux,
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(cfg.Server.CORSAllowedOrigins),
		RateLimiter(context.Background(), cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger),
		APIKeyAuth(cfg.Server.APIKeys, []string{"/healthz", "/metrics"}, false, logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverConfig, logger)

	return s, nil
}

// registerProviders builds and registers every provider named in
// cfg.Providers (§6 Configuration). "claude" uses the Claude Messages
// wire format; every other name is treated as an OpenAI-compatible
// endpoint (LMStudio, OpenRouter, NanoGpt, ...).
func registerProviders(pool *llm.Pool, cfg *config.Config, logger *zap.Logger) {
	for name, pcfg := range cfg.Providers {
		var provider llm.Provider
		if name == "claude" {
			provider = claude.New(pcfg, logger)
		} else {
			provider = openaicompat.New(name, pcfg, logger)
		}
		pool.Register(provider, llm.PoolConfig{
			ConcurrencyCap: pcfg.ConcurrencyCap,
			QueueWait:      cfg.Engine.ProviderQueueWait,
		})
	}
}

// openDatabase opens the Postgres connection backing the Artifact Store
// and Review Registry's durable store.
func openDatabase(dbCfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbCfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("database connected", zap.String("host", dbCfg.Host), zap.String("name", dbCfg.Name))
	return db, nil
}

// Start binds the HTTP listener and starts the instruction watcher, if
// configured. It does not block.
func (s *Server) Start() error {
	if s.instructionWatch != nil {
		s.instructionWatch.Start()
	}
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	s.logger.Info("ideaforge server started", zap.String("addr", s.httpManager.Addr()))
	return nil
}

// WaitForShutdown blocks until a shutdown signal or server error, then
// tears everything down.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown(context.Background())
}

// Shutdown releases every resource Start acquired.
func (s *Server) Shutdown(ctx context.Context) {
	if s.instructionWatch != nil {
		s.instructionWatch.Stop()
	}
	if err := s.httpManager.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown error", zap.Error(err))
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("cache manager close error", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("database pool close error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}
	s.wg.Wait()
}
