package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisGuardPrefix     = "triage:lock:"
	redisGuardReleaseTTL = 2 * time.Second
)

// only the holder's token may delete the lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisGuard is a cross-process lease on a ticket, held with SET NX PX.
// The TTL bounds how long a crashed holder blocks the ticket.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGuard returns a guard whose leases expire after ttl.
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGuard{client: client, ttl: ttl, logger: logger}
}

// Acquire implements Guard.
func (g *RedisGuard) Acquire(ctx context.Context, ticketID string) (func(), error) {
	key := redisGuardPrefix + ticketID
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire triage lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTriageInProgress, ticketID)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisGuardReleaseTTL)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			g.logger.Warn("release triage lock", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}, nil
}
