package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealfacts-cli/internal/store"
)

// openStore opens the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("database URL is required (DEALFACTS_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case "sqlite":
		path := cfg.Store.DatabaseURL
		if path == "" {
			path = "dealfacts.db"
		}
		return store.NewSQLite(path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
