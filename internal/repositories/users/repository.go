// Package users stores household members.
package users

import (
	"context"

	"github.com/dmitrijs2005/finvault/internal/models"
)

// Repository persists models.User rows.
type Repository interface {
	// Create inserts user, assigning an ID when none is set.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}
