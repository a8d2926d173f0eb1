package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
)

// NewStore builds the configured backend and, when L1MaxCost is positive,
// wraps it in a TieredStore. redisClient is only used by the redis backend.
// The returned cleanup releases the L1 cache.
func NewStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (BlobStore, func(), error) {
	var backend BlobStore
	switch cfg.Cache.Backend {
	case "file":
		fs, err := NewFileStore(FileStoreConfig{
			Dir:        cfg.Cache.Dir,
			MaxEntries: cfg.Cache.MaxEntries,
			MaxBytes:   cfg.Cache.MaxBytes,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		backend = fs
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		backend = NewRedisStore(redisClient, "ekaya-analyst:", cfg.Cache.TTL)
	case "s3":
		s3Store, err := NewS3Store(ctx, &cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		backend = s3Store
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	logger.Info("Forecast cache ready",
		zap.String("backend", cfg.Cache.Backend),
		zap.Int64("l1_max_cost", cfg.Cache.L1MaxCost))

	if cfg.Cache.L1MaxCost <= 0 {
		return backend, func() {}, nil
	}
	tiered, err := NewTieredStore(backend, cfg.Cache.L1MaxCost, logger)
	if err != nil {
		return nil, nil, err
	}
	return tiered, tiered.Close, nil
}
