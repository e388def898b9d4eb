package repositories

import (
	"context"

	"github.com/Suja2004/WebRTC/internal/core/ports"
	"github.com/Suja2004/WebRTC/internal/infrastructure/repositories/memory"
	redisrepo "github.com/Suja2004/WebRTC/internal/infrastructure/repositories/redis"
	"github.com/Suja2004/WebRTC/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory selects the registry backend from config, falling
// back to memory when Redis is unreachable.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory registry",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis registry")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory registry")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreateRegistryRepository() ports.RegistryRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisRegistryRepository(f.redisClient)
	}
	return memory.NewMemoryRegistryRepository()
}

// HealthCheck verifies backend connectivity; memory always passes.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.redisClient)
}
