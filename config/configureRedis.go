package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedisServer connects to REDIS_ADDRESS. It returns nil when Redis is not reachable so
// callers can run without the batch guard.
func InitRedisServer(ctx context.Context) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     RedisAddress(),
		Password: GetEnv("REDIS_PASSWORD"),
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		Logger.Warn("Redis not reachable, batch guard disabled",
			zap.String("addr", RedisAddress()),
			zap.Error(err))
		_ = client.Close()
		return nil
	}

	return client
}

// RedisAddress returns REDIS_ADDRESS with a development default
func RedisAddress() string {
	return GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
}
