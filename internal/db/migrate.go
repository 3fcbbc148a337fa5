package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/tastebook/apiserver/config"
)

// MigrateUp applies all pending migrations from the given source URL,
// e.g. "file://internal/db/migrations". Used by the DB_AUTO_MIGRATE
// startup toggle for fresh deployments.
func MigrateUp(cfg config.DatabaseConfig, sourceURL string) error {
	migrator, err := migrate.New(sourceURL, PostgresURL(cfg))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}
