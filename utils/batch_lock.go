package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BatchLocker serialises work on one batch across instances.
type BatchLocker interface {
	// Acquire returns a release func when the lock was obtained, or ok=false when
	// another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type redisBatchLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisBatchLocker returns a SETNX based locker. A nil client yields nil, which
// services treat as "no locking".
func NewRedisBatchLocker(client *redis.Client) BatchLocker {
	if client == nil {
		return nil
	}
	return &redisBatchLocker{client: client, prefix: "batch-lock:"}
}

// release only deletes the key when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisBatchLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire batch lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{fullKey}, token).Err()
	}
	return release, true, nil
}
