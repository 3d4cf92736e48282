// Package deks stores owner-wrapped data encryption keys, one per
// encrypted entity.
package deks

import (
	"context"

	"github.com/dmitrijs2005/finvault/internal/models"
)

// Repository persists models.DEK rows keyed by (entity type, entity id).
type Repository interface {
	// Create returns common.ErrorAlreadyExists if the entity already has a DEK.
	Create(ctx context.Context, dek *models.DEK) error
	// Get returns common.ErrorNotFound when the entity is not encrypted.
	Get(ctx context.Context, entityType models.EntityType, entityID string) (*models.DEK, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.DEK, error)
	// UpdateWrapping replaces the wrapped key, IV and tag.
	UpdateWrapping(ctx context.Context, dek *models.DEK) error
	// Delete removes the record; a missing record is not an error.
	Delete(ctx context.Context, entityType models.EntityType, entityID string) error
}
