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
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) UserKeys(db dbx.DBTX) userkeys.Repository {
	return userkeys.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) DEKs(db dbx.DBTX) deks.Repository {
	return deks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Shares(db dbx.DBTX) shares.Repository {
	return shares.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) SharingDefaults(db dbx.DBTX) sharingdefaults.Repository {
	return sharingdefaults.NewPostgresRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.DirPostgres)
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
