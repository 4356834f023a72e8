// Package bootstrap wires optional runtime dependencies from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/suze-ad/finetech/internal/config"
	"github.com/suze-ad/finetech/internal/conversation"
	"github.com/suze-ad/finetech/internal/leads"
	"github.com/suze-ad/finetech/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildTranscriptStore returns the Redis-backed transcript store, or nil
// when Redis is not configured.
func BuildTranscriptStore(redisClient *redis.Client, cfg *appconfig.Config) *conversation.TranscriptStore {
	if cfg == nil {
		return conversation.NewTranscriptStore(redisClient, 0, 0)
	}
	return conversation.NewTranscriptStore(redisClient, int64(cfg.TranscriptMax), cfg.TranscriptTTL)
}

// BuildLeadsRepository returns the Postgres-backed leads repository when a
// database is configured, falling back to the in-memory one.
func BuildLeadsRepository(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (leads.Repository, *pgxpool.Pool) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return leads.NewInMemoryRepository(), nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres not available, using in-memory lead storage", "error", err)
		return leads.NewInMemoryRepository(), nil
	}
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres ping failed, using in-memory lead storage", "error", err)
		pool.Close()
		return leads.NewInMemoryRepository(), nil
	}

	logger.Info("lead storage backed by postgres")
	return leads.NewPostgresRepository(pool), pool
}
