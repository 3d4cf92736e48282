package deks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.DEK) error {
	query :=
		`INSERT INTO deks (entity_id, entity_type, owner_id, wrapped_dek, iv, auth_tag)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (entity_id, entity_type) DO NOTHING
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, d.EntityID, string(d.EntityType), d.OwnerID,
		d.WrappedDEK, d.IV, d.AuthTag).Scan(&d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, entityType models.EntityType, entityID string) (*models.DEK, error) {
	query :=
		`SELECT entity_id, entity_type, owner_id, wrapped_dek, iv, auth_tag, created_at
		 FROM deks
		 WHERE entity_id = $1 AND entity_type = $2
		 `

	d := &models.DEK{}
	var typ string
	err := r.db.QueryRowContext(ctx, query, entityID, string(entityType)).
		Scan(&d.EntityID, &typ, &d.OwnerID, &d.WrappedDEK, &d.IV, &d.AuthTag, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	d.EntityType = models.EntityType(typ)
	return d, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.DEK, error) {
	query :=
		`SELECT entity_id, entity_type, owner_id, wrapped_dek, iv, auth_tag, created_at
		 FROM deks
		 WHERE owner_id = $1
		 ORDER BY entity_type, entity_id
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DEK
	for rows.Next() {
		var (
			d   models.DEK
			typ string
		)
		if err := rows.Scan(&d.EntityID, &typ, &d.OwnerID, &d.WrappedDEK, &d.IV, &d.AuthTag, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.EntityType = models.EntityType(typ)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateWrapping(ctx context.Context, d *models.DEK) error {
	query :=
		`UPDATE deks SET wrapped_dek = $1, iv = $2, auth_tag = $3
		 WHERE entity_id = $4 AND entity_type = $5
		 `

	res, err := r.db.ExecContext(ctx, query, d.WrappedDEK, d.IV, d.AuthTag, d.EntityID, string(d.EntityType))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, entityType models.EntityType, entityID string) error {
	query :=
		`DELETE FROM deks
		 WHERE entity_id = $1 AND entity_type = $2
		 `

	if _, err := r.db.ExecContext(ctx, query, entityID, string(entityType)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
