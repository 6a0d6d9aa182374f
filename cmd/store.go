package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/safestreets/crossing-cli/internal/db"
	"github.com/safestreets/crossing-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "crossings.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
