// Package repomanager vends repository implementations for a database
// backend and runs its schema migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/filex"
	"github.com/dmitrijs2005/finvault/internal/repositories/deks"
	"github.com/dmitrijs2005/finvault/internal/repositories/shares"
	"github.com/dmitrijs2005/finvault/internal/repositories/sharingdefaults"
	"github.com/dmitrijs2005/finvault/internal/repositories/userkeys"
	"github.com/dmitrijs2005/finvault/internal/repositories/users"
	"github.com/pressly/goose/v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	UserKeys(db dbx.DBTX) userkeys.Repository
	DEKs(db dbx.DBTX) deks.Repository
	Shares(db dbx.DBTX) shares.Repository
	SharingDefaults(db dbx.DBTX) sharingdefaults.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// New returns the manager for driver, which is DriverSQLite or DriverPostgres.
func New(driver string) (RepositoryManager, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLiteRepositoryManager(), nil
	case DriverPostgres:
		return NewPostgresRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open opens the database and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	m, err := New(driver)
	if err != nil {
		return nil, nil, err
	}

	if path, ok := filex.SQLiteFilePath(dsn); ok && driver == DriverSQLite {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY
		// and keeps in-memory databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, m, nil
}
