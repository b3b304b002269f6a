package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DefaultMigrationsPath is the migration source used when none is configured
const DefaultMigrationsPath = "file://migrations"

// Migrate applies all pending up migrations from sourceURL.
func Migrate(databaseURL, sourceURL string, logger *slog.Logger) error {
	return withMigrator(databaseURL, sourceURL, func(m *migrate.Migrate) error {
		err := m.Up()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		noChange := errors.Is(err, migrate.ErrNoChange)

		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			logger.Info("migrations: database is up to date (no migrations applied)")
		case err != nil:
			return fmt.Errorf("failed to get migration version: %w", err)
		case dirty:
			return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
		case noChange:
			logger.Info("migrations: database is up to date", "version", version)
		default:
			logger.Info("migrations: applied successfully", "version", version)
		}
		return nil
	})
}

// MigrateDown rolls back the given number of migrations
func MigrateDown(databaseURL, sourceURL string, steps int, logger *slog.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	return withMigrator(databaseURL, sourceURL, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		logger.Info("migrations: rolled back", "steps", steps)
		return nil
	})
}

func withMigrator(databaseURL, sourceURL string, fn func(m *migrate.Migrate) error) error {
	if sourceURL == "" {
		sourceURL = DefaultMigrationsPath
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return fn(m)
}
