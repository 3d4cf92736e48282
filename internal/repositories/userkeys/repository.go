// Package userkeys stores each user's public key and password-protected
// private key.
package userkeys

import (
	"context"

	"github.com/dmitrijs2005/finvault/internal/models"
)

// Repository persists models.UserKeys rows, at most one per user.
type Repository interface {
	// Create inserts keys; it returns common.ErrorAlreadyExists if the user
	// already has a row.
	Create(ctx context.Context, keys *models.UserKeys) error

	// GetByUserID returns common.ErrorNotFound if the user never enabled encryption.
	GetByUserID(ctx context.Context, userID string) (*models.UserKeys, error)

	// UpdateProtection replaces the salt, work factor and sealed private key.
	UpdateProtection(ctx context.Context, keys *models.UserKeys) error
}
