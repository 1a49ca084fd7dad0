package storage

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"formbuilder/internal/config"
	"formbuilder/internal/database"
)

// Open 根据配置构建 Backend。返回的 close 函数负责释放底层连接；
// redisClient 仅在 redis backend 下使用，由调用方管理生命周期。
func Open(cfg *config.Config, redisClient redis.UniversalClient) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemory(), noop, nil
	case config.BackendFile:
		b, err := NewFile(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return b, noop, nil
	case config.BackendDatabase:
		db, err := database.InitDatabase(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("init database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("unwrap db: %w", err)
		}
		return NewGorm(db), sqlDB.Close, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis backend requires a redis client")
		}
		return NewRedis(redisClient, cfg.Redis.Prefix), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}
