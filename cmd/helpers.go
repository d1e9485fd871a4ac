package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/waterdragen/coverage-cli/internal/geometry"
	"github.com/waterdragen/coverage-cli/internal/store"
)

// openStore opens the run store and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// buildProvider constructs the configured geometry backend. The returned
// close function releases backend resources and is safe to call on the nil
// path.
func buildProvider(ctx context.Context, backend string) (geometry.Provider, func(), error) {
	if backend == "" {
		backend = cfg.Provider.Backend
	}

	switch backend {
	case "geos":
		return geometry.NewGEOS(), func() {}, nil

	case "postgis":
		if cfg.Provider.DatabaseURL == "" {
			return nil, nil, eris.New("provider: postgis backend requires provider.database_url")
		}
		pool, err := pgxpool.New(ctx, cfg.Provider.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "provider: connect postgis")
		}
		return geometry.NewPostGIS(pool), pool.Close, nil

	default:
		return nil, nil, eris.Errorf("provider: unknown backend %q", backend)
	}
}
