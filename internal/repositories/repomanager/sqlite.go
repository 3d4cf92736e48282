package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/migrations"
	"github.com/dmitrijs2005/finvault/internal/repositories/deks"
	"github.com/dmitrijs2005/finvault/internal/repositories/shares"
	"github.com/dmitrijs2005/finvault/internal/repositories/sharingdefaults"
	"github.com/dmitrijs2005/finvault/internal/repositories/userkeys"
	"github.com/dmitrijs2005/finvault/internal/repositories/users"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories. It is the
// default backend for a single-household install.
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) UserKeys(db dbx.DBTX) userkeys.Repository {
	return userkeys.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) DEKs(db dbx.DBTX) deks.Repository {
	return deks.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Shares(db dbx.DBTX) shares.Repository {
	return shares.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) SharingDefaults(db dbx.DBTX) sharingdefaults.Repository {
	return sharingdefaults.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.DirSQLite)
}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}
