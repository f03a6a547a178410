package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func TestTSQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "refund | charged | twice", tsQuery("Refund: charged twice, refund!"))
	assert.Equal(t, "drop | table", tsQuery("'); DROP TABLE & |"))
	assert.Empty(t, tsQuery(" !?& "))
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\x`, escapeLike(`c:\x`))
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(fmt.Errorf("scan: %w", pgx.ErrNoRows)), domain.ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23505"}), domain.ErrAlreadyExists)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

type countingConfigRepo struct {
	cfg   domain.RuntimeConfig
	reads int
}

func (r *countingConfigRepo) Get(context.Context) (domain.RuntimeConfig, error) {
	r.reads++
	return r.cfg, nil
}

func (r *countingConfigRepo) Put(_ context.Context, cfg domain.RuntimeConfig) (domain.RuntimeConfig, error) {
	r.cfg = cfg
	return cfg, nil
}

func TestCachedConfigWithoutRedisIsPassthrough(t *testing.T) {
	t.Parallel()

	next := &countingConfigRepo{cfg: domain.DefaultRuntimeConfig()}
	repo := NewCachedRuntimeConfigRepository(next, nil, time.Minute, nil)
	assert.Same(t, next, repo)
}

func TestCachedConfigDegradesWhenRedisIsDown(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.WarnLevel)
	next := &countingConfigRepo{cfg: domain.DefaultRuntimeConfig()}
	repo := NewCachedRuntimeConfigRepository(next, client, time.Minute, zap.New(core))

	cfg, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfidenceThreshold, cfg.ConfidenceThreshold)
	assert.Equal(t, 1, next.reads)
	assert.Equal(t, 1, logs.FilterMessage("runtime config cache read failed").Len())

	cfg.SLAHours = 2
	saved, err := repo.Put(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.SLAHours)
	assert.Equal(t, 1, logs.FilterMessage("runtime config cache invalidation failed").Len())
}

// racingConfigRepo runs onRead once while serving a Get, after the stale
// value has already been loaded.
type racingConfigRepo struct {
	countingConfigRepo
	onRead func()
}

func (r *racingConfigRepo) Get(ctx context.Context) (domain.RuntimeConfig, error) {
	cfg, err := r.countingConfigRepo.Get(ctx)
	if hook := r.onRead; hook != nil {
		r.onRead = nil
		hook()
	}
	return cfg, err
}

func TestCachedConfigPutWinsOverConcurrentFill(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	resetKeys := func() {
		require.NoError(t, client.Del(ctx, runtimeConfigCacheKey, runtimeConfigGenerationKey).Err())
	}
	resetKeys()
	t.Cleanup(resetKeys)

	next := &racingConfigRepo{countingConfigRepo: countingConfigRepo{cfg: domain.DefaultRuntimeConfig()}}
	repo := NewCachedRuntimeConfigRepository(next, client, time.Minute, zap.NewNop())

	disabled := domain.DefaultRuntimeConfig()
	disabled.AutoCloseEnabled = false
	next.onRead = func() {
		_, err := repo.Put(ctx, disabled)
		require.NoError(t, err)
	}

	stale, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, stale.AutoCloseEnabled)

	fresh, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, fresh.AutoCloseEnabled)
	assert.Equal(t, 2, next.reads)

	cached, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, cached.AutoCloseEnabled)
	assert.Equal(t, 2, next.reads)
}
