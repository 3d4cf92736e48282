package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sqliteColumns = `id, entity_id, entity_type, owner_id, recipient_id, wrapped_dek,
	can_view, can_combine, can_reports, created_at`

func scanSQLite(s interface{ Scan(...any) error }) (*models.DataShare, error) {
	var (
		sh      models.DataShare
		typ     string
		created int64
	)
	err := s.Scan(&sh.ID, &sh.EntityID, &typ, &sh.OwnerID, &sh.RecipientID, &sh.WrappedDEK,
		&sh.Permissions.View, &sh.Permissions.Combine, &sh.Permissions.Reports, &created)
	if err != nil {
		return nil, err
	}
	sh.EntityType = models.EntityType(typ)
	sh.CreatedAt = dbx.FromUnixNano(created)
	return &sh, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, sh *models.DataShare) error {
	if sh.ID == "" {
		sh.ID = uuid.NewString()
	}
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO data_shares (` + sqliteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, entity_type, recipient_id) DO UPDATE SET
			wrapped_dek = excluded.wrapped_dek,
			can_view    = excluded.can_view,
			can_combine = excluded.can_combine,
			can_reports = excluded.can_reports`

	_, err := r.db.ExecContext(ctx, query,
		sh.ID, sh.EntityID, string(sh.EntityType), sh.OwnerID, sh.RecipientID, sh.WrappedDEK,
		sh.Permissions.View, sh.Permissions.Combine, sh.Permissions.Reports, dbx.UnixNano(sh.CreatedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	// an update keeps the original id and timestamp
	stored, err := r.Get(ctx, sh.EntityType, sh.EntityID, sh.RecipientID)
	if err != nil {
		return err
	}
	sh.ID = stored.ID
	sh.CreatedAt = stored.CreatedAt
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, entityType models.EntityType, entityID, recipientID string) (*models.DataShare, error) {
	query := `SELECT ` + sqliteColumns + ` FROM data_shares
		WHERE entity_id = ? AND entity_type = ? AND recipient_id = ?`

	sh, err := scanSQLite(r.db.QueryRowContext(ctx, query, entityID, string(entityType), recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sh, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.DataShare, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DataShare
	for rows.Next() {
		sh, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.DataShare, error) {
	return r.list(ctx, `SELECT `+sqliteColumns+` FROM data_shares
		WHERE entity_id = ? AND entity_type = ? ORDER BY created_at, id`, entityID, string(entityType))
}

func (r *SQLiteRepository) ListByRecipient(ctx context.Context, recipientID string) ([]models.DataShare, error) {
	return r.list(ctx, `SELECT `+sqliteColumns+` FROM data_shares
		WHERE recipient_id = ? ORDER BY entity_type, entity_id`, recipientID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, entityType models.EntityType, entityID, recipientID string) error {
	query := `DELETE FROM data_shares WHERE entity_id = ? AND entity_type = ? AND recipient_id = ?`

	res, err := r.db.ExecContext(ctx, query, entityID, string(entityType), recipientID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *SQLiteRepository) DeleteByEntity(ctx context.Context, entityType models.EntityType, entityID string) (int64, error) {
	query := `DELETE FROM data_shares WHERE entity_id = ? AND entity_type = ?`

	res, err := r.db.ExecContext(ctx, query, entityID, string(entityType))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
