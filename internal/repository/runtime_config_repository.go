package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// RuntimeConfigRepository reads and writes the single runtime config row.
type RuntimeConfigRepository interface {
	Get(ctx context.Context) (domain.RuntimeConfig, error)
	Put(ctx context.Context, cfg domain.RuntimeConfig) (domain.RuntimeConfig, error)
}

type runtimeConfigRepository struct {
	pool     *pgxpool.Pool
	defaults domain.RuntimeConfig
}

// NewRuntimeConfigRepository builds repository. defaults seed the row on first read.
func NewRuntimeConfigRepository(pool *pgxpool.Pool, defaults domain.RuntimeConfig) RuntimeConfigRepository {
	return &runtimeConfigRepository{pool: pool, defaults: defaults}
}

// Get returns the stored config, inserting defaults if the row is missing.
// A stored row that fails validation is returned with ErrInvalidConfig.
func (r *runtimeConfigRepository) Get(ctx context.Context) (domain.RuntimeConfig, error) {
	const query = `
        WITH ins AS (
            INSERT INTO runtime_config (id, auto_close_enabled, confidence_threshold, sla_hours)
            VALUES (1, $1, $2, $3)
            ON CONFLICT (id) DO NOTHING
            RETURNING auto_close_enabled, confidence_threshold, sla_hours, updated_at
        )
        SELECT auto_close_enabled, confidence_threshold, sla_hours, updated_at FROM ins
        UNION ALL
        SELECT auto_close_enabled, confidence_threshold, sla_hours, updated_at FROM runtime_config WHERE id=1
        LIMIT 1`

	var cfg domain.RuntimeConfig
	if err := r.pool.QueryRow(ctx, query,
		r.defaults.AutoCloseEnabled,
		r.defaults.ConfidenceThreshold,
		r.defaults.SLAHours,
	).Scan(&cfg.AutoCloseEnabled, &cfg.ConfidenceThreshold, &cfg.SLAHours, &cfg.UpdatedAt); err != nil {
		return domain.RuntimeConfig{}, translate(err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (r *runtimeConfigRepository) Put(ctx context.Context, cfg domain.RuntimeConfig) (domain.RuntimeConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.RuntimeConfig{}, err
	}
	const query = `
        INSERT INTO runtime_config (id, auto_close_enabled, confidence_threshold, sla_hours, updated_at)
        VALUES (1, $1, $2, $3, NOW())
        ON CONFLICT (id) DO UPDATE SET
            auto_close_enabled=EXCLUDED.auto_close_enabled,
            confidence_threshold=EXCLUDED.confidence_threshold,
            sla_hours=EXCLUDED.sla_hours,
            updated_at=NOW()
        RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query,
		cfg.AutoCloseEnabled,
		cfg.ConfidenceThreshold,
		cfg.SLAHours,
	).Scan(&cfg.UpdatedAt); err != nil {
		return domain.RuntimeConfig{}, translate(err)
	}
	return cfg, nil
}
