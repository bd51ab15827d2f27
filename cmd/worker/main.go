// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
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
	"github.com/ammerola/salesflow-be/internal/pkg/config"
	"github.com/ammerola/salesflow-be/internal/pkg/logger"
	"github.com/ammerola/salesflow-be/internal/pkg/metrics"
	"github.com/ammerola/salesflow-be/internal/workers"
)

// dailyReportSpec runs shortly after midnight UTC, reporting on the day
// that just ended
const dailyReportSpec = "5 0 * * *"

func main() {
	slogger := logger.SetupLogger("info", "json")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	// Tasks replay sales against the shared database; an in-process store
	// would never be seen by the API.
	if cfg.Sales.Store != config.StorePostgres {
		slogger.Error("worker requires the postgres store",
			slog.String("store", cfg.Sales.Store))
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := initDatabase(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slogger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}

	files, err := openFileStorage(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize file storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	m := metrics.New(metrics.DefaultConfig("salesflow-worker"))

	// Repositories and services
	products := db.NewProductRepository(database, slogger)
	sales := db.NewSaleRepository(database, slogger)
	syncLogs := db.NewSyncLogRepository(database, slogger)
	uow := db.NewUnitOfWork(database, products, sales, cfg.Sales.LockTimeout)

	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, slogger)
	invalidator := redis_a.NewCacheManager(cache, slogger)
	jobs := redis_a.NewJobStore(cache, 24*time.Hour)

	var locks ports.LockManager = memory.NewKeyedLocker(cfg.Sales.LockTimeout)
	if cfg.Sales.LockBackend == config.LockRedis {
		locks = redis_a.NewLockManager(redisClient, redis_a.LockConfig{
			TTL:     cfg.Sales.LockTTL,
			Timeout: cfg.Sales.LockTimeout,
		}, slogger)
	}

	saleService := services.NewSaleService(products, sales, uow, locks, slogger,
		services.WithMetrics(m),
		services.WithStockAlerter(workers.NewStockAlerter(client, slogger)))
	reconciler := services.NewBatchReconciler(saleService, syncLogs, services.ReconcilerConfig{
		Concurrency:  cfg.Sales.BatchConcurrency,
		MaxBatchSize: cfg.Sales.MaxBatchSize,
		Metrics:      m,
	}, slogger)
	syncService := services.NewSyncService(reconciler, products, syncLogs, slogger)
	reportService := services.NewReportService(sales, db.NewReportRepository(database.SQLDB()), products, 0, slogger)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:  exponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck,
		Logger:          newAsynqLogger(slogger),
	})

	mux := asynq.NewServeMux()
	mux.Use(workers.Instrument(m, slogger))

	importProcessor := workers.NewImportProcessor(reconciler, products, files, jobs, invalidator, cfg.Sales.MaxBatchSize, slogger)
	mux.HandleFunc(workers.TypeSalesImport, importProcessor.ProcessImport)

	syncProcessor := workers.NewSyncProcessor(syncService, jobs, invalidator, slogger)
	mux.HandleFunc(workers.TypeSalesSync, syncProcessor.ProcessSync)

	alertProcessor := workers.NewAlertProcessor(products, cache, slogger)
	mux.HandleFunc(workers.TypeLowStockAlert, alertProcessor.ProcessLowStock)

	reportProcessor := workers.NewReportProcessor(reportService, cache, 48*time.Hour, slogger)
	mux.HandleFunc(workers.TypeDailySalesReport, reportProcessor.GenerateDailyReport)

	cleanupProcessor := workers.NewCleanupProcessor(files, syncLogs,
		cfg.FileProcessing.UploadRetention, cfg.Sales.SyncLogRetention, slogger)
	mux.HandleFunc(workers.TypeCleanupUploads, cleanupProcessor.CleanupUploads)
	mux.HandleFunc(workers.TypeCleanupSyncLogs, cleanupProcessor.CleanupSyncLogs)

	scheduler, err := newScheduler(redisOpt, cfg, slogger)
	if err != nil {
		slogger.Error("failed to register periodic tasks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(mux); err != nil {
		slogger.Error("failed to run worker server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slogger.Error("failed to start scheduler", slog.String("error", err.Error()))
		srv.Shutdown()
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Asynq.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.Asynq.MetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slogger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Shutdown()
	srv.Shutdown()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}
	slogger.Info("worker shutdown complete")
}

// newScheduler registers the periodic report and cleanup tasks
func newScheduler(redisOpt asynq.RedisClientOpt, cfg *config.Config, logger *slog.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(logger),
	})

	// A zero day means yesterday at run time
	report, err := workers.NewDailyReportTask(time.Time{})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(dailyReportSpec, report); err != nil {
		return nil, fmt.Errorf("failed to schedule daily report: %w", err)
	}

	interval := cfg.FileProcessing.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	every := fmt.Sprintf("@every %s", interval)
	cleanups := []*asynq.Task{
		asynq.NewTask(workers.TypeCleanupUploads, nil, asynq.Queue(workers.QueueLow), asynq.MaxRetry(1)),
		asynq.NewTask(workers.TypeCleanupSyncLogs, nil, asynq.Queue(workers.QueueLow), asynq.MaxRetry(1)),
	}
	for _, task := range cleanups {
		if _, err := scheduler.Register(every, task); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", task.Type(), err)
		}
	}

	return scheduler, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Database, error) {
	dbConfig := &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     10, // Fewer connections for worker
		MinConnections:     2,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}

	return db.NewDatabase(ctx, dbConfig, logger)
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

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.Int("payload_bytes", len(task.Payload())),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
