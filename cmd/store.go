package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wiki-scraper/internal/progress"
	"github.com/sells-group/wiki-scraper/internal/store"
)

// Run ledger drivers accepted by store.driver.
const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverNone     = "none"
)

// initStore opens and migrates the run ledger. It returns nil, nil when the
// ledger is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case driverSQLite:
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "runs.db"
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, eris.Wrap(err, "create ledger dir")
		}
		st, err = store.NewSQLite(dsn)
	case driverPostgres:
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case driverNone, "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// requireStore is initStore for commands that cannot work without a ledger.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run ledger is disabled (store.driver=none)")
	}
	return st, nil
}

// initProgress builds the progress store from the configured paths.
func initProgress() *progress.Store {
	return progress.New(cfg.Paths)
}
