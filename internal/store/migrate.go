package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/meridian-energy/horizon.plan/internal/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrateLogger adapts zerolog to the migrate.Logger interface.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger := log.WithComponent("store")
	logger.Info().Msgf(format, v...)
}

func (migrateLogger) Verbose() bool { return false }

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: create migration driver: %w", err)
	}

	var m *migrate.Migrate
	if s.MigrationsDir != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+s.MigrationsDir, "sqlite", driver)
	} else {
		src, ferr := iofs.New(migrationFS, "migrations")
		if ferr != nil {
			return nil, fmt.Errorf("store: read embedded migrations: %w", ferr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: create migration instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// MigrateUp applies all pending migrations. Already being at the latest
// version is not an error.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate down: %w", err)
	}
	return nil
}

// MigrateTo migrates up or down to the given schema version.
func (s *Store) MigrateTo(version uint) error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate to %d: %w", version, err)
	}
	return nil
}

// MigrateForce records the given version without running migrations,
// clearing a dirty state.
func (s *Store) MigrateForce(version int) error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("store: force version %d: %w", version, err)
	}
	return nil
}

// MigrateVersion reports the current schema version and dirty flag. A
// database with no recorded version returns (0, false, nil).
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: read version: %w", err)
	}
	return version, dirty, nil
}
