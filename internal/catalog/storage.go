package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"wildlifecore/internal/infra/persistence/memory"
	"wildlifecore/internal/infra/persistence/postgres"
	"wildlifecore/internal/infra/persistence/sqlite"
	"wildlifecore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures a persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the backend described by cfg, defaulting to
// sqlite. SQL backends implement io.Closer; callers close them on shutdown.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine, logger *slog.Logger) (domain.PersistentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		logger.InfoContext(ctx, "catalog store opened", "driver", string(driver))
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = sqlite.DefaultPath
		}
		store, err := sqlite.NewStore(path, engine)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.InfoContext(ctx, "catalog store opened", "driver", string(driver), "path", store.Path())
		return store, nil
	case StoragePostgres:
		dsn := cfg.PostgresDSN
		if dsn == "" {
			dsn = postgres.DefaultDSN
		}
		store, err := postgres.NewStore(ctx, dsn, engine, postgres.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.InfoContext(ctx, "catalog store opened", "driver", string(driver))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
