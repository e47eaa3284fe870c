package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	defense "github.com/jassus213/go-defense"
	"github.com/jassus213/go-defense/store"
)

// OpenStore opens the counter store selected by cfg. Background goroutines
// (memory cleanup, SQLite sweeper) stop when ctx is done. The returned close
// function releases the store's connections.
func OpenStore(ctx context.Context, cfg StoreConfig) (defense.CounterStore, func() error, error) {
	opts := []store.Option{store.WithKeyPrefix(cfg.KeyPrefix)}

	switch cfg.Type {
	case "memory":
		return store.NewMemory(ctx, cfg.Cleanup(), opts...), func() error { return nil }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return store.NewRedis(client, opts...), client.Close, nil

	case "sqlite":
		st, err := store.OpenSQLite(ctx, cfg.SQLite.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		if interval := cfg.Cleanup(); interval > 0 {
			go st.RunSweeper(ctx, interval)
		}
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
