package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

const (
	runtimeConfigCacheKey      = "triage:runtime_config"
	runtimeConfigGenerationKey = "triage:runtime_config:gen"
)

// storeIfCurrent fills the cache only while the generation still matches the
// one observed before reading the store, so a Put racing a cache fill wins.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then gen = "0" end
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

type cachedRuntimeConfig struct {
	AutoCloseEnabled    bool      `json:"autoCloseEnabled"`
	ConfidenceThreshold float64   `json:"confidenceThreshold"`
	SLAHours            int       `json:"slaHours"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type cachedConfigRepository struct {
	next   RuntimeConfigRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRuntimeConfigRepository fronts next with a Redis read-through cache.
// Redis failures degrade to reading next directly.
func NewCachedRuntimeConfigRepository(next RuntimeConfigRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) RuntimeConfigRepository {
	if client == nil {
		return next
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedConfigRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func (r *cachedConfigRepository) Get(ctx context.Context) (domain.RuntimeConfig, error) {
	raw, err := r.client.Get(ctx, runtimeConfigCacheKey).Bytes()
	cacheable := true
	switch {
	case err == nil:
		var c cachedRuntimeConfig
		if jsonErr := json.Unmarshal(raw, &c); jsonErr == nil {
			cfg := domain.RuntimeConfig{
				AutoCloseEnabled:    c.AutoCloseEnabled,
				ConfidenceThreshold: c.ConfidenceThreshold,
				SLAHours:            c.SLAHours,
				UpdatedAt:           c.UpdatedAt,
			}
			if cfg.Validate() == nil {
				return cfg, nil
			}
		}
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("runtime config cache read failed", zap.Error(err))
		cacheable = false
	}

	var gen string
	if cacheable {
		gen, cacheable = r.generation(ctx)
	}
	cfg, err := r.next.Get(ctx)
	if err != nil {
		return cfg, err
	}
	if cacheable {
		r.store(ctx, gen, cfg)
	}
	return cfg, nil
}

func (r *cachedConfigRepository) Put(ctx context.Context, cfg domain.RuntimeConfig) (domain.RuntimeConfig, error) {
	saved, err := r.next.Put(ctx, cfg)
	if err != nil {
		return saved, err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, runtimeConfigGenerationKey)
		pipe.Del(ctx, runtimeConfigCacheKey)
		return nil
	})
	if err != nil {
		r.logger.Warn("runtime config cache invalidation failed", zap.Error(err))
	}
	return saved, nil
}

func (r *cachedConfigRepository) generation(ctx context.Context) (string, bool) {
	gen, err := r.client.Get(ctx, runtimeConfigGenerationKey).Result()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return "0", true
	default:
		r.logger.Warn("runtime config cache generation read failed", zap.Error(err))
		return "", false
	}
}

func (r *cachedConfigRepository) store(ctx context.Context, gen string, cfg domain.RuntimeConfig) {
	payload, err := json.Marshal(cachedRuntimeConfig{
		AutoCloseEnabled:    cfg.AutoCloseEnabled,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		SLAHours:            cfg.SLAHours,
		UpdatedAt:           cfg.UpdatedAt,
	})
	if err != nil {
		return
	}
	keys := []string{runtimeConfigCacheKey, runtimeConfigGenerationKey}
	if err := storeIfCurrent.Run(ctx, r.client, keys, gen, payload, r.ttl.Milliseconds()).Err(); err != nil {
		r.logger.Warn("runtime config cache write failed", zap.Error(err))
	}
}
