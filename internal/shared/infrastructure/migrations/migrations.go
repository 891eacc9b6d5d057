// Package migrations applies the embedded database schema migrations.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed postgres/*.sql
var migrationFiles embed.FS

// Up applies all pending migrations against the given database.
func Up(dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("cannot connect to db: %w", err)
	}
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("cannot create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "postgres")
	if err != nil {
		return fmt.Errorf("cannot load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return fmt.Errorf("cannot create migrate: %w", err)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			logger.Info("database schema up to date")
			return nil
		}
		return fmt.Errorf("cannot migrate up: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
