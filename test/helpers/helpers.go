// test/helpers/helpers.go
package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/salesflow-be/internal/adapters/db"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/pkg/config"
	"github.com/ammerola/salesflow-be/migrations"
)

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// SetupTestDB creates a PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	// Pull PostgreSQL image
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_sales",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	// Clean up on test completion
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	// Get connection details
	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_sales",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		StatementCacheMode: "describe",
		EnableQueryLogging: testing.Verbose(),
	}

	// Wait for database to be ready
	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")

	// Run migrations
	ctx := context.Background()
	migrationConfig := &db.MigrationConfig{
		DatabaseURL: fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port,
			dbConfig.Database, dbConfig.SSLMode),
		Source:     migrations.FS,
		TableName:  "schema_migrations",
		SchemaName: "public",
	}

	err = db.RunMigrationsWithRetry(ctx, migrationConfig, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		db.Close()
	})

	return mock, db
}

// LoadTestConfig returns a test configuration backed by the memory store
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "test-api",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Database: config.DatabaseConfig{
			Host:               "localhost",
			Port:               "5432",
			User:               "test",
			Password:           "test",
			Name:               "test_sales",
			SSLMode:            "disable",
			MaxConnections:     10,
			MinConnections:     2,
			EnableQueryLogging: true,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			DB:       0,
			TTL:      time.Hour,
			PoolSize: 10,
		},
		FileProcessing: config.FileProcessingConfig{
			ImportMaxSizeMB:   5,
			ProcessingTimeout: time.Minute,
			StorageBackend:    "local",
			LocalStoragePath:  os.TempDir(),
			UploadRetention:   24 * time.Hour,
			CleanupInterval:   time.Hour,
		},
		Sales: config.SalesConfig{
			Store:             config.StoreMemory,
			LockBackend:       config.LockLocal,
			LockTimeout:       2 * time.Second,
			LockTTL:           10 * time.Second,
			BatchConcurrency:  1,
			DefaultLowStock:   domain.DefaultLowStockThreshold,
			MaxBatchSize:      100,
			RecentLimit:       20,
			SyncLogRetention:  24 * time.Hour,
			DashboardCacheTTL: time.Minute,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			SecureHeaders:     false,
			RequestIDHeader:   "X-Request-ID",
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// CreateTestProduct returns an unsaved product with sensible defaults
func CreateTestProduct(overrides ...func(*domain.Product)) *domain.Product {
	p := &domain.Product{
		SKU:               "TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		Name:              "Test Espresso Beans 1kg",
		Description:       "Whole bean, medium roast",
		Price:             decimal.RequireFromString("24.90"),
		StockQuantity:     50,
		LowStockThreshold: domain.DefaultLowStockThreshold,
	}

	for _, override := range overrides {
		override(p)
	}

	return p
}

// SeedProducts stores count products in repo and returns them with ids
func SeedProducts(t *testing.T, repo ports.ProductRepository, count int, overrides ...func(int, *domain.Product)) []*domain.Product {
	t.Helper()

	products := make([]*domain.Product, count)
	for i := 0; i < count; i++ {
		p := CreateTestProduct(func(p *domain.Product) {
			p.SKU = fmt.Sprintf("SKU-%03d", i+1)
			p.Name = fmt.Sprintf("Product %d", i+1)
			p.Price = decimal.NewFromInt(int64(5 + i)).Add(decimal.RequireFromString("0.99"))
		})
		for _, o := range overrides {
			o(i, p)
		}
		require.NoError(t, repo.Create(context.Background(), p), "Failed to seed product %s", p.SKU)
		products[i] = p
	}
	return products
}

// CompareSales compares two sales and their item snapshots
func CompareSales(t *testing.T, expected, actual *domain.Sale) {
	t.Helper()

	require.Equal(t, expected.ID, actual.ID)
	require.Equal(t, expected.Source, actual.Source)
	require.True(t, expected.TotalAmount.Equal(actual.TotalAmount),
		"total %s != %s", expected.TotalAmount, actual.TotalAmount)
	require.Len(t, actual.Items, len(expected.Items))
	for i := range expected.Items {
		e, a := expected.Items[i], actual.Items[i]
		require.Equal(t, e.ProductID, a.ProductID)
		require.Equal(t, e.ProductSKU, a.ProductSKU)
		require.Equal(t, e.ProductName, a.ProductName)
		require.Equal(t, e.Quantity, a.Quantity)
		require.True(t, e.UnitPrice.Equal(a.UnitPrice))
		require.True(t, e.Subtotal.Equal(a.Subtotal))
	}
}

// TruncateAllTables truncates all tables in the test database
func TruncateAllTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Exec(ctx, "TRUNCATE TABLE sale_items, sales, sync_logs, products RESTART IDENTITY CASCADE")
	require.NoError(t, err, "Failed to truncate tables")
}
