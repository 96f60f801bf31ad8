package persistence

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/config"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// Redis holds the client backing the audit list.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis builds the client and pings it once. An unreachable server is
// logged rather than returned: each audit write then fails on its own and
// the file sink still records the entry.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, apperrors.NewValidationError("REDIS_ADDR is required for the redis audit sink", nil)
	}
	r := &Redis{
		Client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		addr: cfg.Addr,
	}

	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis audit store unreachable", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("redis audit store ready", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return r, nil
}

// Ping checks the server.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return apperrors.NewStorageError("pinging redis", errors.New("client not configured"))
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return apperrors.NewStorageError("pinging redis", errors.WithMessage(err, r.addr))
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}
