package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redmonkez12/taskmanager-auth/internal/config"
	"github.com/redmonkez12/taskmanager-auth/internal/database"
	"github.com/redmonkez12/taskmanager-auth/internal/user"
)

// backend is the user store selected by STORE_DRIVER together with its
// schema setup and teardown.
type backend struct {
	store   user.Store
	migrate func(ctx context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return &backend{
			store:   user.NewPostgresStore(db),
			migrate: func(ctx context.Context) error { return database.MigratePostgres(ctx, db) },
			close:   func() { db.Close() },
		}, nil

	case config.DriverRedis:
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		return &backend{
			store:   user.NewRedisStore(client),
			migrate: func(context.Context) error { return nil },
			close:   func() { client.Close() },
		}, nil

	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		store := user.NewMongoStore(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
		return &backend{
			store:   store,
			migrate: store.EnsureIndexes,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil
	}

	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
