package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"clickerexam/internal/app"
	"clickerexam/internal/cache"
	"clickerexam/internal/db"
	"clickerexam/internal/store/memory"
	"clickerexam/internal/store/postgres"

	"github.com/redis/go-redis/v9"
)

// openBackend builds the store and snapshot cache selected by cfg. The
// returned func releases every connection it opened.
func openBackend(ctx context.Context, cfg app.Config) (app.Backend, func(), error) {
	var (
		b       app.Backend
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StorageDriver {
	case app.StorageMemory:
		b.Store = memory.New()
		log.Printf("using in-memory store; data is lost on exit")
	case app.StoragePostgres:
		conn, err := db.OpenPostgres(ctx, db.PostgresConfig{
			DSN:             cfg.DBDSN,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
		})
		if err != nil {
			return app.Backend{}, nil, err
		}
		closers = append(closers, func() { _ = conn.Close() })
		b.Store = postgres.New(conn)
		b.DB = conn
	default:
		return app.Backend{}, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	loader := cache.NewStoreLoader(b.Store)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			closeAll()
			return app.Backend{}, nil, fmt.Errorf("ping redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		b.Snapshots = cache.NewRedis(client, loader, cfg.SnapshotCacheTTL)
	} else {
		b.Snapshots = cache.NewMemory(loader, cfg.SnapshotCacheTTL)
	}
	return b, closeAll, nil
}
