// Package sharingdefaults stores standing "share everything of this type
// with that user" rules.
package sharingdefaults

import (
	"context"

	"github.com/dmitrijs2005/finvault/internal/models"
)

type Repository interface {
	// Upsert creates the rule or updates the permissions of an existing one
	// with the same owner, recipient and entity type.
	Upsert(ctx context.Context, d *models.SharingDefault) error
	// ListForOwner returns the owner's rules that apply to entityType, which
	// includes rules stored with models.EntityAll. An empty entityType
	// returns every rule of the owner.
	ListForOwner(ctx context.Context, ownerID string, entityType models.EntityType) ([]models.SharingDefault, error)
	// Delete returns common.ErrorNotFound if no rule matched.
	Delete(ctx context.Context, ownerID, recipientID string, entityType models.EntityType) error
}
