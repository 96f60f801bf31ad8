// Package persistence opens the optional external audit stores.
package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/config"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// Postgres is the audit database. Pool is set on every value NewPostgres
// returns.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres connects to the audit database, pings it and, when
// cfg.RunMigrations is set, applies the embedded schema. Any failure closes
// the pool and is reported as a storage error.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	target := poolCfg.ConnConfig.Host + "/" + poolCfg.ConnConfig.Database

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.NewStorageError("connecting postgres", errors.WithMessage(err, target))
	}
	pg := &Postgres{Pool: pool}

	if err := pool.Ping(ctx); err != nil {
		pg.Close()
		return nil, apperrors.NewStorageError("pinging postgres", errors.WithMessage(err, target))
	}
	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pool, logger); err != nil {
			pg.Close()
			return nil, apperrors.NewStorageError("migrating audit schema", err)
		}
	}

	logger.Info("postgres audit store ready",
		zap.String("target", target),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Bool("migrated", cfg.RunMigrations))
	return pg, nil
}

// poolConfig parses the DSN and applies the configured pool limits.
func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, apperrors.NewStorageError("parsing POSTGRES_DSN", errors.New("no DSN configured"))
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, apperrors.NewStorageError("parsing POSTGRES_DSN", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	return poolCfg, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
