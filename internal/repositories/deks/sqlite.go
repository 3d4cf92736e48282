package deks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sqliteColumns = `entity_id, entity_type, owner_id, wrapped_dek, iv, auth_tag, created_at`

func (r *SQLiteRepository) Create(ctx context.Context, d *models.DEK) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO deks (` + sqliteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, entity_type) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, d.EntityID, string(d.EntityType), d.OwnerID,
		d.WrappedDEK, d.IV, d.AuthTag, dbx.UnixNano(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func scanSQLite(s interface{ Scan(...any) error }) (*models.DEK, error) {
	var (
		d       models.DEK
		typ     string
		created int64
	)
	if err := s.Scan(&d.EntityID, &typ, &d.OwnerID, &d.WrappedDEK, &d.IV, &d.AuthTag, &created); err != nil {
		return nil, err
	}
	d.EntityType = models.EntityType(typ)
	d.CreatedAt = dbx.FromUnixNano(created)
	return &d, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, entityType models.EntityType, entityID string) (*models.DEK, error) {
	query := `SELECT ` + sqliteColumns + ` FROM deks WHERE entity_id = ? AND entity_type = ?`

	d, err := scanSQLite(r.db.QueryRowContext(ctx, query, entityID, string(entityType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.DEK, error) {
	query := `SELECT ` + sqliteColumns + ` FROM deks WHERE owner_id = ? ORDER BY entity_type, entity_id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DEK
	for rows.Next() {
		d, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateWrapping(ctx context.Context, d *models.DEK) error {
	query := `UPDATE deks SET wrapped_dek = ?, iv = ?, auth_tag = ?
		WHERE entity_id = ? AND entity_type = ?`

	res, err := r.db.ExecContext(ctx, query, d.WrappedDEK, d.IV, d.AuthTag, d.EntityID, string(d.EntityType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, entityType models.EntityType, entityID string) error {
	query := `DELETE FROM deks WHERE entity_id = ? AND entity_type = ?`
	if _, err := r.db.ExecContext(ctx, query, entityID, string(entityType)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
