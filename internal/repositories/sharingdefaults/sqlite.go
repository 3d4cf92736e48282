package sharingdefaults

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, d *models.SharingDefault) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO sharing_defaults
		(id, owner_id, recipient_id, entity_type, can_view, can_combine, can_reports, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, recipient_id, entity_type) DO UPDATE SET
			can_view    = excluded.can_view,
			can_combine = excluded.can_combine,
			can_reports = excluded.can_reports
		RETURNING id, created_at`

	var created int64
	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.OwnerID, d.RecipientID, string(d.EntityType),
		d.Permissions.View, d.Permissions.Combine, d.Permissions.Reports, dbx.UnixNano(d.CreatedAt)).
		Scan(&d.ID, &created)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	d.CreatedAt = dbx.FromUnixNano(created)
	return nil
}

func (r *SQLiteRepository) ListForOwner(ctx context.Context, ownerID string, entityType models.EntityType) ([]models.SharingDefault, error) {
	query := `SELECT id, owner_id, recipient_id, entity_type, can_view, can_combine, can_reports, created_at
		FROM sharing_defaults
		WHERE owner_id = ? AND (? = '' OR entity_type = ? OR entity_type = ?)
		ORDER BY recipient_id, entity_type`

	typ := string(entityType)
	rows, err := r.db.QueryContext(ctx, query, ownerID, typ, typ, string(models.EntityAll))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SharingDefault
	for rows.Next() {
		var (
			d       models.SharingDefault
			t       string
			created int64
		)
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.RecipientID, &t,
			&d.Permissions.View, &d.Permissions.Combine, &d.Permissions.Reports, &created); err != nil {
			return nil, err
		}
		d.EntityType = models.EntityType(t)
		d.CreatedAt = dbx.FromUnixNano(created)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, recipientID string, entityType models.EntityType) error {
	query := `DELETE FROM sharing_defaults WHERE owner_id = ? AND recipient_id = ? AND entity_type = ?`

	res, err := r.db.ExecContext(ctx, query, ownerID, recipientID, string(entityType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}
