package models

import (
	"errors"
	"fmt"

	"github.com/alphazee/agencyhub/backend/internal/config"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator runs the versioned SQL files under database.migrations_path.
type Migrator struct {
	m *migrate.Migrate
}

func NewMigrator(cfg *config.DatabaseConfig) (*Migrator, error) {
	if cfg.Driver != "postgres" {
		return nil, fmt.Errorf("sql migrations require the postgres driver, got %s", cfg.Driver)
	}
	m, err := migrate.New(cfg.MigrationsPath, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	return &Migrator{m: m}, nil
}

func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Down rolls back a single step.
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (mg *Migrator) Close() {
	mg.m.Close()
}
