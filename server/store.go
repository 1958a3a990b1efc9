package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// ChallengeStore is a challenge.Store the janitor can sweep.
type ChallengeStore interface {
	challenge.Store
	challenge.Purger
}

// NewChallengeStore builds the backend named by cfg.Store. The returned
// close function releases its connections.
func NewChallengeStore(ctx context.Context, cfg *ServeConfig, log logger.Logger) (ChallengeStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store {
	case "", StoreMemory:
		log.Warn("Using in-memory challenge store; challenges are not shared between instances")
		return challenge.NewMemoryStore(), noop, nil

	case StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		store, err := challenge.NewRedisStore(client, challenge.WithKeyPrefix(cfg.RedisPrefix))
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil

	case StorePostgres, StoreSQLite:
		var dialector gorm.Dialector
		if cfg.Store == StorePostgres {
			dialector = postgres.Open(cfg.DatabaseDSN)
		} else {
			dialector = sqlite.Open(cfg.DatabaseDSN)
		}
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Store, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Store, err)
		}
		store := challenge.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate challenges: %w", err)
		}
		return store, sqlDB.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown challenge store %q", cfg.Store)
}
