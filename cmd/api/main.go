// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/salesflow-be/internal/adapters/db"
	"github.com/ammerola/salesflow-be/internal/adapters/memory"
	redis_a "github.com/ammerola/salesflow-be/internal/adapters/redis_adapter"
	"github.com/ammerola/salesflow-be/internal/adapters/storage"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/core/services"
	"github.com/ammerola/salesflow-be/internal/handlers"
	"github.com/ammerola/salesflow-be/internal/handlers/middleware"
	"github.com/ammerola/salesflow-be/internal/pkg/config"
	"github.com/ammerola/salesflow-be/internal/pkg/logger"
	"github.com/ammerola/salesflow-be/internal/pkg/metrics"
	"github.com/ammerola/salesflow-be/internal/workers"
	"github.com/ammerola/salesflow-be/migrations"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting salesflow api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
		slog.String("store", cfg.Sales.Store),
		slog.String("lock_backend", cfg.Sales.LockBackend),
	)

	ctx := context.Background()

	if cfg.Sales.Store == config.StorePostgres && !cfg.IsProduction() {
		if err := runMigrations(ctx, cfg, slogger); err != nil {
			// Don't exit outside production, the schema may already be current
			slogger.Error("failed to run migrations", slog.String("error", err.Error()))
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received",
			slog.String("signal", sig.String()),
		)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    *redis.Client
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	metrics        *metrics.Metrics

	healthHandler    *handlers.HealthHandler
	salesHandler     *handlers.SalesHandler
	syncHandler      *handlers.SyncHandler
	importHandler    *handlers.ImportHandler
	dashboardHandler *handlers.DashboardHandler
	exportHandler    *handlers.ExportHandler
}

func (d *dependencies) cleanup() {
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

// repositories groups the store-specific adapters behind their ports
type repositories struct {
	ledger   ports.StockLedger
	products ports.ProductRepository
	sales    ports.SaleRepository
	syncLogs ports.SyncLogRepository
	reports  ports.ReportRepository
	uow      ports.UnitOfWork
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}
	if cfg.Server.EnableMetrics {
		deps.metrics = metrics.New(metrics.DefaultConfig(cfg.App.Name))
	}

	repos, err := openStore(ctx, cfg, deps, logger)
	if err != nil {
		deps.cleanup()
		return nil, err
	}

	// Redis backs the cache, job status, distributed locks and the queue.
	// Without it the API still serves sales, with imports and async sync
	// switched off.
	var (
		cache       ports.CacheRepository
		invalidator ports.CacheInvalidator
		jobs        ports.JobStore
		enqueuer    workers.Enqueuer
		locks       ports.LockManager
	)

	redisClient, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		if cfg.Sales.LockBackend == config.LockRedis {
			deps.cleanup()
			return nil, err
		}
		logger.Warn("redis unavailable, running without cache and queue",
			slog.String("error", err.Error()))
	} else {
		deps.redisClient = redisClient
		redisCache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
		cache = redisCache
		invalidator = redis_a.NewCacheManager(redisCache, logger)
		jobs = redis_a.NewJobStore(redisCache, 24*time.Hour)

		asynqRedisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		}
		deps.asynqClient = asynq.NewClient(asynqRedisOpt)
		deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)
		enqueuer = deps.asynqClient
	}

	switch cfg.Sales.LockBackend {
	case config.LockRedis:
		locks = redis_a.NewLockManager(redisClient, redis_a.LockConfig{
			TTL:     cfg.Sales.LockTTL,
			Timeout: cfg.Sales.LockTimeout,
		}, logger)
	default:
		locks = memory.NewKeyedLocker(cfg.Sales.LockTimeout)
	}

	saleOpts := []services.SaleServiceOption{services.WithMetrics(deps.metrics)}
	if enqueuer != nil {
		saleOpts = append(saleOpts, services.WithStockAlerter(workers.NewStockAlerter(enqueuer, logger)))
	}
	saleService := services.NewSaleService(repos.ledger, repos.sales, repos.uow, locks, logger, saleOpts...)
	reconciler := services.NewBatchReconciler(saleService, repos.syncLogs, services.ReconcilerConfig{
		Concurrency:  cfg.Sales.BatchConcurrency,
		MaxBatchSize: cfg.Sales.MaxBatchSize,
		Metrics:      deps.metrics,
	}, logger)
	syncService := services.NewSyncService(reconciler, repos.products, repos.syncLogs, logger)
	reportService := services.NewReportService(repos.sales, repos.reports, repos.products, 0, logger)

	var database handlers.DatabaseChecker
	if deps.database != nil {
		database = deps.database
	}
	deps.healthHandler = handlers.NewHealthHandler(database, deps.redisClient, deps.asynqInspector, cfg, logger)
	deps.salesHandler = handlers.NewSalesHandler(saleService, reconciler, handlers.SalesHandlerConfig{
		Cache:       cache,
		Invalidator: invalidator,
		RecentLimit: cfg.Sales.RecentLimit,
		CacheTTL:    cfg.Sales.DashboardCacheTTL,
	}, logger)
	deps.syncHandler = handlers.NewSyncHandler(syncService, enqueuer, jobs, invalidator, logger)
	deps.dashboardHandler = handlers.NewDashboardHandler(reportService, cache, cfg.Sales.DashboardCacheTTL, logger)
	deps.exportHandler = handlers.NewExportHandler(saleService, logger)

	if enqueuer != nil {
		files, err := openFileStorage(ctx, cfg, logger)
		if err != nil {
			deps.cleanup()
			return nil, err
		}
		maxFileSize := int64(cfg.FileProcessing.ImportMaxSizeMB) << 20
		deps.importHandler = handlers.NewImportHandler(files, jobs, enqueuer, maxFileSize, logger)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// openStore selects the persistence backend from SALES_STORE
func openStore(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) (*repositories, error) {
	if cfg.Sales.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		products := store.Products()
		return &repositories{
			ledger:   products,
			products: products,
			sales:    store.Sales(),
			syncLogs: store.SyncLogs(),
			reports:  store.Reports(),
			uow:      store.UnitOfWork(),
		}, nil
	}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)
	database, err := db.NewDatabase(ctx, databaseConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	products := db.NewProductRepository(database, logger)
	sales := db.NewSaleRepository(database, logger)
	return &repositories{
		ledger:   products,
		products: products,
		sales:    sales,
		syncLogs: db.NewSyncLogRepository(database, logger),
		reports:  db.NewReportRepository(database.SQLDB()),
		uow:      db.NewUnitOfWork(database, products, sales, cfg.Sales.LockTimeout),
	}, nil
}

func databaseConfig(cfg *config.Config) *db.Config {
	return &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("connecting to Redis",
		slog.String("host", cfg.Redis.Host),
		slog.String("port", cfg.Redis.Port),
	)

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		ConnMaxLifetime: cfg.Redis.MaxConnAge,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		ConnMaxIdleTime: cfg.Redis.IdleTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func openFileStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.FileStorage, error) {
	if cfg.FileProcessing.StorageBackend == "local" {
		return storage.NewLocalStorage(cfg.FileProcessing.LocalStoragePath, logger)
	}
	return storage.NewS3Storage(ctx, &storage.S3Config{
		Region:          cfg.AWS.Region,
		Bucket:          cfg.AWS.S3Bucket,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.S3Endpoint,
		UsePathStyle:    cfg.AWS.UsePathStyle,
	}, logger)
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	// Apply middleware in reverse order (innermost first). Metrics must sit
	// directly on the mux to see the matched pattern.
	var handler http.Handler = mux
	if deps.metrics != nil {
		handler = middleware.Metrics(deps.metrics)(handler)
	}
	if cfg.Server.WriteTimeout > time.Second {
		handler = middleware.Timeout(cfg.Server.WriteTimeout - time.Second)(handler)
	}
	handler = middleware.Principal(handler)

	if cfg.App.Environment != "test" {
		handler = middleware.Logger(logger)(handler)
		handler = middleware.RequestID(handler)
		handler = middleware.Recovery(logger)(handler)
	}

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}

	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies, cfg *config.Config) {
	apiV1 := "/api/v1"
	requireUser := func(h http.HandlerFunc) http.Handler { return middleware.RequireUser(h) }

	if cfg.Server.EnableHealthCheck {
		mux.HandleFunc("GET /health", deps.healthHandler.Health)
		mux.HandleFunc("GET /ready", deps.healthHandler.Readiness)
		mux.HandleFunc("GET "+apiV1+"/health", deps.healthHandler.Health)
	}

	// Sales
	mux.Handle("POST "+apiV1+"/sales", requireUser(deps.salesHandler.CreateSale))
	mux.Handle("POST "+apiV1+"/sales/bulk", requireUser(deps.salesHandler.BulkCreate))
	mux.Handle("GET "+apiV1+"/sales", middleware.Compression(http.HandlerFunc(deps.salesHandler.ListSales)))
	mux.HandleFunc("GET "+apiV1+"/sales/today", deps.salesHandler.SalesToday)
	mux.HandleFunc("GET "+apiV1+"/sales/recent", deps.salesHandler.RecentSales)
	mux.HandleFunc("GET "+apiV1+"/sales/{id}", deps.salesHandler.GetSale)
	mux.HandleFunc("GET "+apiV1+"/products/{id}/history", deps.salesHandler.ProductHistory)

	// Offline sync
	mux.Handle("POST "+apiV1+"/sync", requireUser(deps.syncHandler.Sync))
	mux.HandleFunc("GET "+apiV1+"/sync/changes", deps.syncHandler.Changes)
	mux.HandleFunc("GET "+apiV1+"/sync/logs", deps.syncHandler.Logs)

	// Imports need redis and file storage
	if deps.importHandler != nil {
		mux.Handle("POST "+apiV1+"/import/sales", requireUser(deps.importHandler.ImportSales))
		mux.HandleFunc("GET "+apiV1+"/import/status/{jobId}", deps.importHandler.ImportStatus)
	}

	// Reports
	mux.HandleFunc("GET "+apiV1+"/dashboard", deps.dashboardHandler.GetDashboard)
	mux.HandleFunc("GET "+apiV1+"/reports/daily", deps.dashboardHandler.DailyReport)
	mux.HandleFunc("GET "+apiV1+"/products/low-stock", deps.dashboardHandler.LowStock)
	mux.HandleFunc("GET "+apiV1+"/alerts/low-stock", deps.dashboardHandler.LowStockAlert)
	mux.HandleFunc("GET "+apiV1+"/export/sales.xlsx", deps.exportHandler.ExportSales)

	if cfg.Server.EnableMetrics && deps.metrics != nil {
		mux.Handle("GET /metrics", deps.metrics.Handler())
	}

	if cfg.Server.EnablePprof && cfg.IsDevelopment() {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")

	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		Source:      migrations.FS,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}, logger, 3)
}
