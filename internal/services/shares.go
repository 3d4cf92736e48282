package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
)

// SharingService grants and revokes access to encrypted entities. It never
// touches a UEK or private key: the owner's DEK comes from DEKService.
type SharingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deks        *DEKService
	log         logging.Logger
}

func NewSharingService(db *sql.DB, m repomanager.RepositoryManager, deks *DEKService, opts ...Option) *SharingService {
	o := buildOptions(opts)
	return &SharingService{db: db, repomanager: m, deks: deks, log: o.log}
}

// ShareEntity wraps the owner's DEK for recipientID and stores the share,
// replacing an earlier share to the same recipient.
func (s *SharingService) ShareEntity(ctx context.Context, entityID string, entityType models.EntityType,
	ownerID, recipientID string, perms models.Permissions) (*models.DataShare, error) {
	if ownerID == recipientID {
		return nil, common.ErrInvalidShare
	}

	dek, err := s.deks.ResolveDEKForReader(ctx, entityType, entityID, ownerID, ownerID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dek)

	share, err := s.issue(ctx, entityType, entityID, ownerID, recipientID, dek, perms)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "entity shared", "entity_type", entityType, "entity_id", entityID,
		"owner_id", ownerID, "recipient_id", recipientID, "permissions", perms.String())
	return share, nil
}

func (s *SharingService) issue(ctx context.Context, entityType models.EntityType, entityID, ownerID, recipientID string,
	dek []byte, perms models.Permissions) (*models.DataShare, error) {
	pub, err := loadPublicKey(ctx, s.repomanager.UserKeys(s.db), recipientID)
	if err != nil {
		return nil, err
	}
	wrapped, err := cryptox.WrapKey(dek, pub)
	if err != nil {
		return nil, err
	}

	share := &models.DataShare{
		EntityID:    entityID,
		EntityType:  entityType,
		OwnerID:     ownerID,
		RecipientID: recipientID,
		WrappedDEK:  wrapped,
		Permissions: perms,
	}
	if err := s.repomanager.Shares(s.db).Upsert(ctx, share); err != nil {
		return nil, fmt.Errorf("error saving share: %w", err)
	}
	return share, nil
}

// ApplyBlanketShares creates a share for every sharing default of the owner
// that matches entityType. A recipient covered by both an exact-type rule
// and an "all" rule gets one share with the exact rule's permissions.
// Recipients without keys are skipped. It returns the number of shares made.
func (s *SharingService) ApplyBlanketShares(ctx context.Context, entityType models.EntityType, entityID, ownerID string, dek []byte) (int, error) {
	defaults, err := s.repomanager.SharingDefaults(s.db).ListForOwner(ctx, ownerID, entityType)
	if err != nil {
		return 0, fmt.Errorf("error loading sharing defaults: %w", err)
	}

	byRecipient := make(map[string]models.SharingDefault, len(defaults))
	for _, d := range defaults {
		if !d.Matches(entityType) {
			continue
		}
		if prev, ok := byRecipient[d.RecipientID]; ok && prev.EntityType != models.EntityAll {
			continue
		}
		byRecipient[d.RecipientID] = d
	}

	recipients := make([]string, 0, len(byRecipient))
	for id := range byRecipient {
		recipients = append(recipients, id)
	}
	sort.Strings(recipients)

	created := 0
	for _, recipientID := range recipients {
		if recipientID == ownerID {
			continue
		}
		d := byRecipient[recipientID]
		_, err := s.issue(ctx, entityType, entityID, ownerID, recipientID, dek, d.Permissions)
		if errors.Is(err, common.ErrMissingCounterpartKeys) {
			s.log.Warn(ctx, "blanket share skipped, recipient has no keys",
				"entity_type", entityType, "entity_id", entityID, "owner_id", ownerID, "recipient_id", recipientID)
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		s.log.Info(ctx, "blanket shares applied", "entity_type", entityType, "entity_id", entityID, "count", created)
	}
	return created, nil
}

// Revoke deletes the recipient's share. The DEK is not rotated; use
// DEKService.RotateDEK for that.
func (s *SharingService) Revoke(ctx context.Context, entityID string, entityType models.EntityType, recipientID string) error {
	if err := s.repomanager.Shares(s.db).Delete(ctx, entityType, entityID, recipientID); err != nil {
		return err
	}
	s.log.Info(ctx, "share revoked", "entity_type", entityType, "entity_id", entityID, "recipient_id", recipientID)
	return nil
}

func (s *SharingService) GetSharesForEntity(ctx context.Context, entityID string, entityType models.EntityType) ([]models.DataShare, error) {
	return s.repomanager.Shares(s.db).ListByEntity(ctx, entityType, entityID)
}

func (s *SharingService) GetSharesForRecipient(ctx context.Context, recipientID string) ([]models.DataShare, error) {
	return s.repomanager.Shares(s.db).ListByRecipient(ctx, recipientID)
}

// SetSharingDefault stores a standing rule. entityType may be models.EntityAll.
func (s *SharingService) SetSharingDefault(ctx context.Context, ownerID, recipientID string, entityType models.EntityType,
	perms models.Permissions) (*models.SharingDefault, error) {
	if ownerID == recipientID {
		return nil, common.ErrInvalidShare
	}
	if !entityType.Valid() && entityType != models.EntityAll {
		return nil, common.ErrUnknownEntityType
	}

	d := &models.SharingDefault{
		OwnerID:     ownerID,
		RecipientID: recipientID,
		EntityType:  entityType,
		Permissions: perms,
	}
	if err := s.repomanager.SharingDefaults(s.db).Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("error saving sharing default: %w", err)
	}
	return d, nil
}

// GetSharingDefaults lists the owner's rules that apply to entityType,
// including "all" rules. An empty entityType lists every rule.
func (s *SharingService) GetSharingDefaults(ctx context.Context, ownerID string, entityType models.EntityType) ([]models.SharingDefault, error) {
	return s.repomanager.SharingDefaults(s.db).ListForOwner(ctx, ownerID, entityType)
}

func (s *SharingService) RemoveSharingDefault(ctx context.Context, ownerID, recipientID string, entityType models.EntityType) error {
	return s.repomanager.SharingDefaults(s.db).Delete(ctx, ownerID, recipientID, entityType)
}
