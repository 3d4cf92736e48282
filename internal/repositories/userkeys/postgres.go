package userkeys

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

func (r *PostgresRepository) Create(ctx context.Context, k *models.UserKeys) error {
	query :=
		`INSERT INTO user_keys (user_id, salt, kdf_iterations, public_key,
			encrypted_private_key, private_key_iv, private_key_tag)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, k.UserID, k.Salt, k.KDFIterations, k.PublicKey,
		k.EncryptedPrivateKey, k.PrivateKeyIV, k.PrivateKeyTag).Scan(&k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.UserKeys, error) {
	query :=
		`SELECT user_id, salt, kdf_iterations, public_key,
			encrypted_private_key, private_key_iv, private_key_tag, created_at
		 FROM user_keys
		 WHERE user_id = $1
		 `

	k := &models.UserKeys{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&k.UserID, &k.Salt, &k.KDFIterations,
		&k.PublicKey, &k.EncryptedPrivateKey, &k.PrivateKeyIV, &k.PrivateKeyTag, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (r *PostgresRepository) UpdateProtection(ctx context.Context, k *models.UserKeys) error {
	query :=
		`UPDATE user_keys
		 SET salt = $1, kdf_iterations = $2, encrypted_private_key = $3, private_key_iv = $4, private_key_tag = $5
		 WHERE user_id = $6
		 `

	res, err := r.db.ExecContext(ctx, query, k.Salt, k.KDFIterations,
		k.EncryptedPrivateKey, k.PrivateKeyIV, k.PrivateKeyTag, k.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}
