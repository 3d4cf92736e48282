package sharingdefaults

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, d *models.SharingDefault) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO sharing_defaults (id, owner_id, recipient_id, entity_type, can_view, can_combine, can_reports)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (owner_id, recipient_id, entity_type) DO UPDATE SET
		   can_view    = EXCLUDED.can_view,
		   can_combine = EXCLUDED.can_combine,
		   can_reports = EXCLUDED.can_reports
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.OwnerID, d.RecipientID, string(d.EntityType),
		d.Permissions.View, d.Permissions.Combine, d.Permissions.Reports).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListForOwner(ctx context.Context, ownerID string, entityType models.EntityType) ([]models.SharingDefault, error) {
	query :=
		`SELECT id, owner_id, recipient_id, entity_type, can_view, can_combine, can_reports, created_at
		 FROM sharing_defaults
		 WHERE owner_id = $1 AND ($2 = '' OR entity_type = $2 OR entity_type = $3)
		 ORDER BY recipient_id, entity_type
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID, string(entityType), string(models.EntityAll))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SharingDefault
	for rows.Next() {
		var (
			d models.SharingDefault
			t string
		)
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.RecipientID, &t,
			&d.Permissions.View, &d.Permissions.Combine, &d.Permissions.Reports, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.EntityType = models.EntityType(t)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, recipientID string, entityType models.EntityType) error {
	query :=
		`DELETE FROM sharing_defaults
		 WHERE owner_id = $1 AND recipient_id = $2 AND entity_type = $3
		 `

	res, err := r.db.ExecContext(ctx, query, ownerID, recipientID, string(entityType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}
