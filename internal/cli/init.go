// Package cli holds the initialization steps shared by cmd/hesab and
// cmd/hesab-worker.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"hesab/internal/config"
	applog "hesab/internal/log"
	"hesab/internal/storage"
)

// Bootstrap loads the .env file, installs the process logger, and returns
// a validated configuration. Exits the process on configuration errors.
func Bootstrap(ctx context.Context, component string) *config.Config {
	_ = godotenv.Load()
	applog.Setup(component)

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.ErrorContext(ctx, "invalid configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// MustStorage opens the SQLite repository and runs migrations. Exits the
// process on failure.
func MustStorage(ctx context.Context, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open database", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
