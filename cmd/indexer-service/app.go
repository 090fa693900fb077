package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"indexer/internal/admin"
	"indexer/internal/broker"
	"indexer/internal/config"
	"indexer/internal/constants"
	"indexer/internal/indexer"
	"indexer/internal/logger"
	"indexer/internal/mapping"
	"indexer/internal/runlog"
	"indexer/pkg/bootstrap"
	"indexer/pkg/health"
	"indexer/pkg/metrics"
	"indexer/pkg/middleware"
	"indexer/pkg/ratelimit"
	"indexer/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	stores   *bootstrap.Stores
	pipeline *indexer.Pipeline
	mappings *mapping.Service
	server   *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		stores: &bootstrap.Stores{},
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.OnShutdown("tracer provider", tp.Shutdown)

	metrics.Register()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	stores, err := bootstrap.NewDatabaseConnector(a.Config.Database, a.Logger).Connect(initCtx)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	a.stores = stores
	a.OnShutdown("databases", stores.Close)

	pipeline, err := indexer.Build(a.Config, a.recorder(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to configure handler: %w", err)
	}
	a.pipeline = pipeline

	if err := a.initMappings(); err != nil {
		return fmt.Errorf("failed to initialize mappings: %w", err)
	}

	if err := a.InitBroker(constants.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router(ctx),
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) recorder() runlog.Recorder {
	var recorders runlog.Multi
	if a.stores.Postgres != nil {
		recorders = append(recorders, runlog.NewPostgresStore(a.stores.Postgres))
	}
	if a.stores.Redis != nil {
		recorders = append(recorders, a.latestRuns())
	}
	if len(recorders) == 0 {
		return runlog.NopRecorder{}
	}
	return recorders
}

func (a *App) latestRuns() *runlog.RedisStore {
	return runlog.NewRedisStore(a.stores.Redis, time.Duration(a.Config.RunLog.TTLSeconds)*time.Second)
}

func (a *App) initMappings() error {
	if a.stores.MongoDB == nil {
		a.Logger.Warn("MongoDB not configured, mapping registry disabled")
		return nil
	}

	svc, err := newMappingService(a.Config.Mapping, mapping.NewRepository(a.stores.MongoDB), a.Logger)
	if err != nil {
		return err
	}
	a.mappings = svc
	return nil
}

func newMappingService(cfg config.MappingConfig, repo mapping.Repository, log logger.Logger) (*mapping.Service, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("mapping work dir: %w", err)
	}

	svc := mapping.NewService(repo, osfs.New(workDir), log.Named("mapping"))
	if cfg.GemmaLocation != "" {
		svc.RegisterTool(mapping.TypeGemma, mapping.NewGemmaTool(cfg.PythonLocation, cfg.GemmaLocation, log.Named("gemma")))
	}
	return svc, nil
}

func (a *App) router(ctx context.Context) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.Admin.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.Config.Admin.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := &admin.Handler{
		Records:      a.pipeline.Archiver,
		HistoryLimit: a.Config.RunLog.HistoryLimit,
		Logger:       a.Logger.Named("admin"),
	}
	if a.stores.Postgres != nil {
		handler.History = runlog.NewPostgresStore(a.stores.Postgres)
	}
	if a.stores.Redis != nil {
		handler.Latest = a.latestRuns()
	}
	if a.mappings != nil {
		handler.Mappings = a.mappings
	}
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewStorageChecker(a.pipeline.Archiver.Filesystem()))
	healthRegistry.RegisterOptional(health.NewIndexChecker(a.Config.Indexer.ElasticURL, &http.Client{Timeout: constants.DefaultHTTPTimeout}))
	if a.stores.Postgres != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.stores.Postgres))
	}
	if a.stores.Redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.stores.Redis))
	}
	if a.stores.Mongo != nil {
		healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.stores.Mongo))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return consume(gCtx, a.Consumer, a.Config.Broker.Kafka.InputTopic, a.pipeline.Coordinator.Handle)
	})

	return g.Wait()
}

// consume treats cancellation as a clean stop so shutdown does not surface
// context.Canceled from Run.
func consume(ctx context.Context, c broker.Consumer, topic string, h broker.Handler) error {
	err := c.Consume(ctx, topic, h)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runMapping backs the map command. It needs only MongoDB and the mapping tool.
func runMapping(ctx context.Context, cfg *config.Config, log logger.Logger, mappingID, mappingType, input, output string, stdout io.Writer) error {
	if cfg.Database.MongoDB.URI == "" {
		return fmt.Errorf("database.mongodb.uri is required for mappings")
	}

	dbCfg := config.DatabaseConfig{MongoDB: cfg.Database.MongoDB, RunMigrations: cfg.Database.RunMigrations}
	stores, err := bootstrap.NewDatabaseConnector(dbCfg, log).Connect(ctx)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	svc, err := newMappingService(cfg.Mapping, mapping.NewRepository(stores.MongoDB), log)
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	result, err := svc.Execute(ctx, mappingID, mappingType, in)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = stdout.Write(result)
		return err
	}
	return os.WriteFile(output, result, 0o644)
}
