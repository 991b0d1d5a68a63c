package storage

import (
	"context"
	"fmt"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/config"
)

// Migrator is implemented by backends that own a SQL schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// NewStore opens the backend selected by cfg.StorageBackend.
func NewStore(ctx context.Context, cfg *config.Config, logger internal.Logger, opts ...Option) (Store, error) {
	switch cfg.StorageBackend {
	case config.BackendFile:
		return NewFileStorage(cfg.DataDir, logger, opts...)
	case config.BackendPostgres:
		return NewPostgresStorage(ctx, cfg.PostgresDSN, logger, opts...)
	case config.BackendSQLite:
		return NewSQLiteStorage(cfg.SQLitePath, logger, opts...)
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
}
