// internal/pkg/config/config_test.go
package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_SalesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("SALES_STORE", "memory")
	t.Setenv("SALES_LOCK_TIMEOUT", "250ms")
	t.Setenv("SALES_BATCH_CONCURRENCY", "4")

	cfg, err := Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Sales.Store)
	assert.Equal(t, LockLocal, cfg.Sales.LockBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.Sales.LockTimeout)
	assert.Equal(t, 30*time.Second, cfg.Sales.LockTTL)
	assert.Equal(t, 4, cfg.Sales.BatchConcurrency)
	assert.Equal(t, 500, cfg.Sales.MaxBatchSize)
	assert.Equal(t, 20, cfg.Sales.RecentLimit)
	assert.Equal(t, 10, cfg.Sales.DefaultLowStock)
}

func TestSalesValidator(t *testing.T) {
	valid := func() *Config {
		return &Config{Sales: SalesConfig{
			Store:            StorePostgres,
			LockBackend:      LockRedis,
			LockTimeout:      5 * time.Second,
			LockTTL:          30 * time.Second,
			BatchConcurrency: 1,
		}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown_store", mutate: func(c *Config) { c.Sales.Store = "sqlite" }, wantErr: "SALES_STORE"},
		{name: "unknown_lock_backend", mutate: func(c *Config) { c.Sales.LockBackend = "etcd" }, wantErr: "SALES_LOCK_BACKEND"},
		{name: "zero_lock_timeout", mutate: func(c *Config) { c.Sales.LockTimeout = 0 }, wantErr: "lock timeout"},
		{name: "ttl_not_above_timeout", mutate: func(c *Config) { c.Sales.LockTTL = time.Second }, wantErr: "TTL"},
		{name: "zero_concurrency", mutate: func(c *Config) { c.Sales.BatchConcurrency = 0 }, wantErr: "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := (&SalesValidator{}).Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProductionValidator_RejectsMemoryStore(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{SSLMode: "require", Password: "s3cret"},
		Security: SecurityConfig{SecureHeaders: true, AllowedOrigins: []string{"https://pos.example.com"}},
		Sales:    SalesConfig{Store: StoreMemory},
	}
	err := (&ProductionValidator{}).Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory")

	cfg.Sales.Store = StorePostgres
	assert.NoError(t, (&ProductionValidator{}).Validate(cfg))
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "db", Port: "5432", Name: "salesflow"},
		Server:   ServerConfig{Port: "8080"},
		Sales:    SalesConfig{Store: StorePostgres},
	}
	err := validateRequiredFields(cfg)
	assert.ErrorIs(t, err, ErrMissingRequiredConfig)
	assert.Contains(t, err.Error(), "Sales.LockBackend")

	cfg.Sales.LockBackend = LockLocal
	assert.NoError(t, validateRequiredFields(cfg))
}

type fakeSecrets struct {
	value string
	calls int
	err   error
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestApplySecrets_OverlaysCredentials(t *testing.T) {
	client := &fakeSecrets{value: `{"DB_PASSWORD":"db-pass","REDIS_PASSWORD":"redis-pass"}`}
	sm := newAWSSecretsManager(client, "salesflow/prod", quietLogger())

	cfg := &Config{
		Database: DatabaseConfig{Password: "from-env"},
		AWS:      AWSConfig{AccessKeyID: "keep-me"},
	}
	require.NoError(t, applySecrets(context.Background(), cfg, sm))

	assert.Equal(t, "db-pass", cfg.Database.Password)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, "redis-pass", cfg.Asynq.RedisPassword)
	assert.Equal(t, "keep-me", cfg.AWS.AccessKeyID)

	// Second lookup is served from cache.
	_, err := sm.GetSecret(context.Background(), SecretDBPassword)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestApplySecrets_PropagatesFetchError(t *testing.T) {
	sm := newAWSSecretsManager(&fakeSecrets{err: errors.New("access denied")}, "salesflow/prod", quietLogger())
	err := applySecrets(context.Background(), &Config{}, sm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
