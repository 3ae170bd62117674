package middleware

import (
	"context"
	"errors"

	"welfare-receipts-backend/token"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKey = "revoked_token:"

// AppContext bundles the dependencies of the identity middleware
type AppContext struct {
	PasetoMaker token.Maker
	Ctx         context.Context
	// RedisClient holds revoked token ids; nil disables revocation.
	RedisClient *redis.Client
}

// IsRevoked reports whether the token id was revoked. An unreachable Redis is returned as
// an error so callers can decide to fail open.
func (a *AppContext) IsRevoked(ctx context.Context, payload *token.Payload) (bool, error) {
	if a.RedisClient == nil {
		return false, nil
	}
	err := a.RedisClient.Get(ctx, revokedTokenKey+payload.ID.String()).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
