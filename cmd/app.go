package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/ingest"
	"github.com/sells-group/marketlens/internal/insight"
	"github.com/sells-group/marketlens/internal/mapping"
	"github.com/sells-group/marketlens/internal/narrative/prepare"
	"github.com/sells-group/marketlens/internal/snapshot"
	"github.com/sells-group/marketlens/internal/store"
)

// appEnv holds the store and the services built on it.
type appEnv struct {
	Store    store.Store
	Ingest   *ingest.Engine
	Insights *insight.Engine
	Narrator *prepare.Service
}

// Close releases resources held by the environment.
func (a *appEnv) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	retry := cfg.Retry.Policy()

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "marketlens.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		st.SetRetry(retry)
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Postgres.MaxConns,
			MinConns: cfg.Store.Postgres.MinConns,
		})
		if err != nil {
			return nil, err
		}
		st.SetRetry(retry)
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initApp validates config for mode, opens and migrates the store and wires
// the services. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	dict, err := mapping.Load(cfg.Mapping.File)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := ingest.NewEngine(st, dict, snapshot.NewBuilder(st, nil), ingest.Config{
		BatchSize:   cfg.Ingest.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		StorageDir:  cfg.Ingest.StorageDir,
	})

	zap.L().Debug("app initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("storage_dir", cfg.Ingest.StorageDir),
		zap.Bool("custom_mapping", cfg.Mapping.File != ""),
	)

	return &appEnv{
		Store:    st,
		Ingest:   engine,
		Insights: insight.NewEngine(st),
		Narrator: prepare.NewService(st),
	}, nil
}
