package bootstrap

import (
	"context"
	"log/slog"

	"cinema-order-engine/internal/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var RedisModule = fx.Module("redis",
	fx.Provide(
		NewRedisScripter,
	),
)

// NewRedisScripter returns nil when REDIS_ADDR is unset, which turns rate
// limiting off.
func NewRedisScripter(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) redis.Scripter {
	if !cfg.Redis.Enabled() {
		logger.Info("rate limiter disabled: REDIS_ADDR not set")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("redis unreachable, rate limiter fails open", "addr", cfg.Redis.Addr, "error", err.Error())
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})
	return client
}
