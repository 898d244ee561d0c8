package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient connects to Redis for the advisory cart-hold cache. The
// cache is optional: when no address is configured or the ping fails the
// function returns nil and callers degrade to ledger-only availability.
func NewRedisClient(cfg RedisConfig, logger *logrus.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("Redis not configured, cart holds disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, cart holds disabled")
		client.Close()
		return nil
	}

	logger.WithField("addr", cfg.Addr).Info("Connected to Redis")
	return client
}
