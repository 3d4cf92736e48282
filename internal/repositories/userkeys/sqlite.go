package userkeys

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

func (r *SQLiteRepository) Create(ctx context.Context, k *models.UserKeys) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO user_keys (user_id, salt, kdf_iterations, public_key,
			encrypted_private_key, private_key_iv, private_key_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, k.UserID, k.Salt, k.KDFIterations, k.PublicKey,
		k.EncryptedPrivateKey, k.PrivateKeyIV, k.PrivateKeyTag, dbx.UnixNano(k.CreatedAt))
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

func (r *SQLiteRepository) GetByUserID(ctx context.Context, userID string) (*models.UserKeys, error) {
	query := `SELECT user_id, salt, kdf_iterations, public_key,
			encrypted_private_key, private_key_iv, private_key_tag, created_at
		FROM user_keys WHERE user_id = ?`

	var (
		k       models.UserKeys
		created int64
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&k.UserID, &k.Salt, &k.KDFIterations,
		&k.PublicKey, &k.EncryptedPrivateKey, &k.PrivateKeyIV, &k.PrivateKeyTag, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	k.CreatedAt = dbx.FromUnixNano(created)
	return &k, nil
}

func (r *SQLiteRepository) UpdateProtection(ctx context.Context, k *models.UserKeys) error {
	query := `UPDATE user_keys
		SET salt = ?, kdf_iterations = ?, encrypted_private_key = ?, private_key_iv = ?, private_key_tag = ?
		WHERE user_id = ?`

	res, err := r.db.ExecContext(ctx, query, k.Salt, k.KDFIterations,
		k.EncryptedPrivateKey, k.PrivateKeyIV, k.PrivateKeyTag, k.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}
