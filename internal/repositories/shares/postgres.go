package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
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

const pgColumns = `id, entity_id, entity_type, owner_id, recipient_id, wrapped_dek,
		 can_view, can_combine, can_reports, created_at`

func scanPostgres(s interface{ Scan(...any) error }) (*models.DataShare, error) {
	var (
		sh  models.DataShare
		typ string
	)
	err := s.Scan(&sh.ID, &sh.EntityID, &typ, &sh.OwnerID, &sh.RecipientID, &sh.WrappedDEK,
		&sh.Permissions.View, &sh.Permissions.Combine, &sh.Permissions.Reports, &sh.CreatedAt)
	if err != nil {
		return nil, err
	}
	sh.EntityType = models.EntityType(typ)
	return &sh, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, sh *models.DataShare) error {
	if sh.ID == "" {
		sh.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO data_shares (id, entity_id, entity_type, owner_id, recipient_id, wrapped_dek,
		 can_view, can_combine, can_reports)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (entity_id, entity_type, recipient_id) DO UPDATE SET
		   wrapped_dek = EXCLUDED.wrapped_dek,
		   can_view    = EXCLUDED.can_view,
		   can_combine = EXCLUDED.can_combine,
		   can_reports = EXCLUDED.can_reports
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		sh.ID, sh.EntityID, string(sh.EntityType), sh.OwnerID, sh.RecipientID, sh.WrappedDEK,
		sh.Permissions.View, sh.Permissions.Combine, sh.Permissions.Reports).Scan(&sh.ID, &sh.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, entityType models.EntityType, entityID, recipientID string) (*models.DataShare, error) {
	query :=
		`SELECT ` + pgColumns + `
		 FROM data_shares
		 WHERE entity_id = $1 AND entity_type = $2 AND recipient_id = $3
		 `

	sh, err := scanPostgres(r.db.QueryRowContext(ctx, query, entityID, string(entityType), recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sh, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.DataShare, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DataShare
	for rows.Next() {
		sh, err := scanPostgres(rows)
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

func (r *PostgresRepository) ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.DataShare, error) {
	query :=
		`SELECT ` + pgColumns + `
		 FROM data_shares
		 WHERE entity_id = $1 AND entity_type = $2
		 ORDER BY created_at, id
		 `
	return r.list(ctx, query, entityID, string(entityType))
}

func (r *PostgresRepository) ListByRecipient(ctx context.Context, recipientID string) ([]models.DataShare, error) {
	query :=
		`SELECT ` + pgColumns + `
		 FROM data_shares
		 WHERE recipient_id = $1
		 ORDER BY entity_type, entity_id
		 `
	return r.list(ctx, query, recipientID)
}

func (r *PostgresRepository) Delete(ctx context.Context, entityType models.EntityType, entityID, recipientID string) error {
	query :=
		`DELETE FROM data_shares
		 WHERE entity_id = $1 AND entity_type = $2 AND recipient_id = $3
		 `

	res, err := r.db.ExecContext(ctx, query, entityID, string(entityType), recipientID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) DeleteByEntity(ctx context.Context, entityType models.EntityType, entityID string) (int64, error) {
	query :=
		`DELETE FROM data_shares
		 WHERE entity_id = $1 AND entity_type = $2
		 `

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
