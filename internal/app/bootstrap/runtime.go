package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	"github.com/gsdriver/alexa-logger/internal/checkpoint"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/pkg/logging"
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
		_ = client.Close()
		return nil
	}
	return client
}

// BuildCheckpointStore returns the store selected by CHECKPOINT_BACKEND, or
// nil for "none".
func BuildCheckpointStore(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (checkpoint.Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch backend := strings.ToLower(strings.TrimSpace(cfg.CheckpointBackend)); backend {
	case "", "none":
		logger.Info("checkpoints disabled; every report run is a full run")
		return nil, nil
	case "dynamodb":
		logger.Info("checkpoints stored in dynamodb", "table", cfg.CheckpointTable)
		return checkpoint.NewDynamoStore(mainconfig.NewDynamoClient(awsCfg), cfg.CheckpointTable), nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis checkpoint backend unavailable at %q", cfg.RedisAddr)
		}
		logger.Info("checkpoints stored in redis", "addr", cfg.RedisAddr)
		return checkpoint.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown checkpoint backend %q", backend)
	}
}
