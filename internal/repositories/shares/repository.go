// Package shares stores per-recipient grants to encrypted entities.
package shares

import (
	"context"

	"github.com/dmitrijs2005/finvault/internal/models"
)

// Repository persists models.DataShare rows. At most one share exists per
// (entity, recipient) pair.
type Repository interface {
	// Upsert inserts the share or, if the recipient already holds one for
	// the entity, replaces its wrapped key and permissions. ID and CreatedAt
	// are filled from the stored row.
	Upsert(ctx context.Context, share *models.DataShare) error
	Get(ctx context.Context, entityType models.EntityType, entityID, recipientID string) (*models.DataShare, error)
	ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.DataShare, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]models.DataShare, error)
	// Delete returns common.ErrorNotFound if no share matched.
	Delete(ctx context.Context, entityType models.EntityType, entityID, recipientID string) error
	// DeleteByEntity removes every share of the entity and returns how many went.
	DeleteByEntity(ctx context.Context, entityType models.EntityType, entityID string) (int64, error)
}
