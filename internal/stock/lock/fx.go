package lock

import (
	"github.com/greenbasket/backoffice/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when no address is configured; the stock service
// treats a nil locker as "in-process locking only".
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	log.Info("stock lock redis enabled", zap.String("addr", cfg.RedisAddr))
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

var Module = fx.Module("stock.lock",
	fx.Provide(
		NewRedisClient,
		NewLocker,
	),
)
