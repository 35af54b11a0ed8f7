package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fastprodman/pvpescrow/internal/infra/logging"
	"github.com/fastprodman/pvpescrow/pkg/envconf"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var baseFS embed.FS

//go:embed test_data/*.sql
var devFS embed.FS

const seedMigrationsTable = "seed_migrations"

type migratorConfig struct {
	DSN      string     `env:"PG_DSN,notEmpty"`
	LogLevel slog.Level `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	AppEnv   string     `env:"APP_ENV" envDefault:"PROD"`
	// Target pins the schema to a version, migrating down if needed.
	// Zero means the latest version.
	Target uint `env:"MIGRATE_TARGET" envDefault:"0"`
}

func main() {
	err := migrateAll()
	if err != nil {
		slog.Error("migration run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migration run finished successfully")
}

func migrateAll() error {
	cfg := new(migratorConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel, logging.FileConfig{})

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	err = db.Ping()
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	schema, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}

	version, err := runMigrations(schema, baseFS, "migrations", cfg.Target)
	if err != nil {
		return fmt.Errorf("base migrations failed: %w", err)
	}

	slog.Info("base migrations applied", "version", version)

	// Seeds keep their own version table so their numbering never collides
	// with the schema's, and they are only ever applied on top of the
	// latest schema.
	if cfg.AppEnv != "DEV" || cfg.Target != 0 {
		return nil
	}

	seeds, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: seedMigrationsTable})
	if err != nil {
		return fmt.Errorf("init seed driver: %w", err)
	}

	version, err = runMigrations(seeds, devFS, "test_data", 0)
	if err != nil {
		return fmt.Errorf("dev seed migrations failed: %w", err)
	}

	slog.Info("dev seed migrations applied", "version", version)

	return nil
}

// runMigrations moves the database to target (latest when zero) and
// returns the resulting version.
func runMigrations(driver database.Driver, fsys embed.FS, dir string, target uint) (uint, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("migrate instance: %w", err)
	}

	if target == 0 {
		err = m.Up()
	} else {
		err = m.Migrate(target)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate to %d: %w", target, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}

		return 0, fmt.Errorf("read version: %w", err)
	}

	if dirty {
		return version, fmt.Errorf("version %d is dirty", version)
	}

	return version, nil
}
