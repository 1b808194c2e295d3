package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sandeepkv93/product-catalog/internal/config"
	"github.com/sandeepkv93/product-catalog/internal/observability"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationStatus describes the schema version recorded by golang-migrate.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Latest  uint
}

func (s MigrationStatus) Pending() bool {
	return s.Version < s.Latest
}

func newMigrator(cfg *config.Config) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, migrationsDir(cfg.DatabaseDriver))
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration. An already current schema is not an error.
func Migrate(cfg *config.Config) error {
	start := time.Now()
	ctx := context.Background()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "migrate", time.Since(start))
	}()

	m, err := newMigrator(cfg)
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "migrate", "error")
		return err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		observability.RecordDatabaseStartupEvent(ctx, "migrate", "error")
		return fmt.Errorf("apply migrations: %w", err)
	}
	observability.RecordDatabaseStartupEvent(ctx, "migrate", "success")
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(cfg *config.Config, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be > 0")
	}
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

func Status(cfg *config.Config) (MigrationStatus, error) {
	pending, err := PendingMigrations(cfg.DatabaseDriver, 0)
	if err != nil {
		return MigrationStatus{}, err
	}
	var latest uint
	if len(pending) > 0 {
		latest = pending[len(pending)-1].Version
	}

	m, err := newMigrator(cfg)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Latest: latest}, nil
}

type MigrationFile struct {
	Version uint
	Name    string
}

// PendingMigrations lists the embedded up migrations above version for driver.
// It does not touch the database.
func PendingMigrations(driver string, version uint) ([]MigrationFile, error) {
	dir := migrationsDir(driver)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	out := make([]MigrationFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var v uint
		if _, err := fmt.Sscanf(name, "%d_", &v); err != nil {
			return nil, fmt.Errorf("parse migration version %s: %w", name, err)
		}
		if v <= version {
			continue
		}
		out = append(out, MigrationFile{Version: v, Name: strings.TrimSuffix(name, ".up.sql")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func migrationsDir(driver string) string {
	if driver == config.DriverSQLite {
		return path.Join("migrations", "sqlite")
	}
	return path.Join("migrations", "postgres")
}

func migrationURL(cfg *config.Config) string {
	if cfg.DatabaseDriver == config.DriverSQLite {
		return "sqlite3://" + strings.TrimPrefix(cfg.DatabaseURL, "file:")
	}
	return cfg.DatabaseURL
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		observability.NewLogger().Warn("close migrator", "source_error", srcErr, "database_error", dbErr)
	}
}
