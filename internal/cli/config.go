package cli

import (
	"context"
	"fmt"

	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/internal/store"
)

// openStore connects to the configured database file.
func openStore(ctx context.Context) (*store.Store, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	dbCfg := store.NewDBConfig(appConfig.Database.Path)
	if appConfig.Database.BusyTimeout > 0 {
		dbCfg.BusyTimeout = appConfig.Database.BusyTimeout
	}
	if appConfig.Database.MaxOpenConns > 0 {
		dbCfg.MaxOpenConns = appConfig.Database.MaxOpenConns
		dbCfg.MaxIdleConns = appConfig.Database.MaxOpenConns
	}

	st, err := store.Open(ctx, dbCfg,
		store.WithPageSize(appConfig.Listing.PageSize),
		store.WithLogger(logger.Store()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", appConfig.Database.Path, err)
	}
	return st, nil
}
