// Package migrations applies the embedded schema to Postgres or SQLite.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/postgres/*.sql files/sqlite/*.sql
var migrationFiles embed.FS

// Dialect selects the schema flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// MigrateUp runs all pending migrations. The caller keeps ownership of db.
func MigrateUp(db *sql.DB, dialect Dialect) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Status reports the applied version and the latest embedded version.
type Status struct {
	Version uint
	Latest  uint
	Dirty   bool
}

// Current reports whether the schema matches the embedded migrations.
func (s Status) Current() bool {
	return !s.Dirty && s.Version == s.Latest
}

// CheckStatus compares the applied schema version against the embedded
// migrations. It returns an error when the database is behind, ahead or
// dirty.
func CheckStatus(db *sql.DB, dialect Dialect) (Status, error) {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return Status{}, err
	}

	src, err := sourceFor(dialect)
	if err != nil {
		return Status{}, err
	}
	defer src.Close()

	latest, err := latestVersion(src)
	if err != nil {
		return Status{}, fmt.Errorf("determine latest version: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return Status{Latest: latest}, fmt.Errorf("database has no schema version (needs migration)")
		}
		return Status{Latest: latest}, fmt.Errorf("read database version: %w", err)
	}

	status := Status{Version: version, Latest: latest, Dirty: dirty}
	switch {
	case dirty:
		return status, fmt.Errorf("database is dirty at version %d", version)
	case version < latest:
		return status, fmt.Errorf("database is at version %d but latest is %d", version, latest)
	case version > latest:
		return status, fmt.Errorf("database version %d is ahead of binary version %d", version, latest)
	}
	return status, nil
}

func sourceFor(dialect Dialect) (source.Driver, error) {
	switch dialect {
	case Postgres, SQLite:
		src, err := iofs.New(migrationFiles, "files/"+string(dialect))
		if err != nil {
			return nil, fmt.Errorf("create source driver: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}

func newMigrate(db *sql.DB, dialect Dialect) (*migrate.Migrate, error) {
	src, err := sourceFor(dialect)
	if err != nil {
		return nil, err
	}

	var (
		driver database.Driver
		name   string
	)
	switch dialect {
	case Postgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
		name = "pgx5"
	case SQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		name = "sqlite3"
	}
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			return version, nil
		}
		version = next
	}
}
