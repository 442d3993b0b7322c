package postgres

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // register file source driver
)

// RunMigrations applies all pending migrations from source (e.g.
// "file://services/risk-calculation-service/internal/infrastructure/postgres/migrations")
// and logs the resulting schema version. No pending migrations is not an error.
func RunMigrations(dsn string, source string, logger *slog.Logger) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: run migrations up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("postgres: read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("postgres: schema version %d is dirty", version)
	}

	if logger != nil {
		logger.Info("database migrations applied", "version", version, "source", source)
	}
	return nil
}
