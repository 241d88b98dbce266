package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mentorlink/apiserver/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// NewMigrator returns a migrator over the embedded SQL migrations.
func NewMigrator(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	migrator, err := migrate.NewWithSourceInstance("iofs", source, PostgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}

// MigrateUp applies every pending up migration. An up-to-date schema is not an error.
func MigrateUp(cfg config.DatabaseConfig) error {
	migrator, err := NewMigrator(cfg)
	if err != nil {
		return err
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

// MigrateDown rolls back the given number of migrations.
func MigrateDown(cfg config.DatabaseConfig, steps int) error {
	if steps < 1 {
		return errors.New("steps must be positive")
	}
	migrator, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}
