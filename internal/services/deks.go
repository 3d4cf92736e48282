package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
	"github.com/dmitrijs2005/finvault/internal/session"
)

// DEKService manages per-entity data encryption keys. It is the only
// consumer of sessions besides KeyService; callers receive raw DEKs only.
type DEKService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    session.Store
	locks       *UserLocks
	log         logging.Logger
}

func NewDEKService(db *sql.DB, m repomanager.RepositoryManager, sessions session.Store, opts ...Option) *DEKService {
	o := buildOptions(opts)
	return &DEKService{db: db, repomanager: m, sessions: sessions, locks: o.locks, log: o.log}
}

func (s *DEKService) unlocked(userID string) (*session.Session, error) {
	sess, ok := s.sessions.Get(userID)
	if !ok || !sess.Alive() {
		return nil, common.ErrorUnauthorized
	}
	return sess, nil
}

// CreateDEK mints a DEK for the entity, stores it wrapped under the owner's
// UEK and returns the raw key. The owner must be unlocked.
func (s *DEKService) CreateDEK(ctx context.Context, entityType models.EntityType, entityID, ownerID string) ([]byte, error) {
	if !entityType.Valid() {
		return nil, common.ErrUnknownEntityType
	}
	defer s.locks.Lock(ownerID)()

	sess, err := s.unlocked(ownerID)
	if err != nil {
		return nil, err
	}

	dek := cryptox.GenerateKey()
	sealed, err := sess.SealWithUEK(dek)
	if err != nil {
		common.WipeByteArray(dek)
		return nil, err
	}

	err = s.repomanager.DEKs(s.db).Create(ctx, &models.DEK{
		EntityID:   entityID,
		EntityType: entityType,
		OwnerID:    ownerID,
		WrappedDEK: sealed.Ciphertext,
		IV:         sealed.IV,
		AuthTag:    sealed.Tag,
	})
	if err != nil {
		common.WipeByteArray(dek)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrDEKExists
		}
		return nil, fmt.Errorf("error saving data key: %w", err)
	}

	s.log.Debug(ctx, "data key created", "entity_type", entityType, "entity_id", entityID, "owner_id", ownerID)
	return dek, nil
}

// ResolveDEKForReader returns the raw DEK of the entity for readerID. The
// owner path is always taken when readerID is the owner, even if a stale
// share to the owner exists. Errors:
//
//   - common.ErrorUnauthorized: the reader has no session
//   - common.ErrorNotFound: the entity has no DEK record (owner path)
//   - common.ErrNotShared: no share for the reader
//   - common.ErrAuthenticationFailed: unwrapping failed
func (s *DEKService) ResolveDEKForReader(ctx context.Context, entityType models.EntityType, entityID, ownerID, readerID string) ([]byte, error) {
	sess, err := s.unlocked(readerID)
	if err != nil {
		return nil, err
	}

	if readerID == ownerID {
		rec, err := s.repomanager.DEKs(s.db).Get(ctx, entityType, entityID)
		if err != nil {
			return nil, err
		}
		return sess.OpenWithUEK(&cryptox.Sealed{Ciphertext: rec.WrappedDEK, IV: rec.IV, Tag: rec.AuthTag})
	}

	share, err := s.repomanager.Shares(s.db).Get(ctx, entityType, entityID, readerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNotShared
		}
		return nil, err
	}
	return sess.UnwrapWithPrivateKey(share.WrappedDEK)
}

// DeleteEntity removes the entity's DEK and then every share of it, in
// one transaction. Deleting an entity that was never encrypted is a no-op.
func (s *DEKService) DeleteEntity(ctx context.Context, entityType models.EntityType, entityID string) error {
	var removed int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.DEKs(tx).Delete(ctx, entityType, entityID); err != nil {
			return fmt.Errorf("error deleting data key: %w", err)
		}
		n, err := s.repomanager.Shares(tx).DeleteByEntity(ctx, entityType, entityID)
		if err != nil {
			return fmt.Errorf("error deleting shares: %w", err)
		}
		removed = n
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "entity keys deleted", "entity_type", entityType, "entity_id", entityID, "shares_removed", removed)
	return nil
}

// RotateDEK replaces the entity's DEK with a fresh one, wraps it for the
// owner and re-issues every share under the recipients' public keys with
// unchanged permissions. The caller must re-encrypt the entity's fields
// with newDEK. Both keys are returned raw.
func (s *DEKService) RotateDEK(ctx context.Context, entityType models.EntityType, entityID, ownerID string) (oldDEK, newDEK []byte, err error) {
	defer s.locks.Lock(ownerID)()

	sess, err := s.unlocked(ownerID)
	if err != nil {
		return nil, nil, err
	}

	newDEK = cryptox.GenerateKey()
	var reissued int

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		deksRepo := s.repomanager.DEKs(tx)
		rec, err := deksRepo.Get(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if rec.OwnerID != ownerID {
			return common.ErrorUnauthorized
		}

		oldDEK, err = sess.OpenWithUEK(&cryptox.Sealed{Ciphertext: rec.WrappedDEK, IV: rec.IV, Tag: rec.AuthTag})
		if err != nil {
			return err
		}

		sealed, err := sess.SealWithUEK(newDEK)
		if err != nil {
			return err
		}
		rec.WrappedDEK, rec.IV, rec.AuthTag = sealed.Ciphertext, sealed.IV, sealed.Tag
		if err := deksRepo.UpdateWrapping(ctx, rec); err != nil {
			return fmt.Errorf("error updating data key: %w", err)
		}

		sharesRepo := s.repomanager.Shares(tx)
		list, err := sharesRepo.ListByEntity(ctx, entityType, entityID)
		if err != nil {
			return fmt.Errorf("error listing shares: %w", err)
		}
		keysRepo := s.repomanager.UserKeys(tx)
		for i := range list {
			sh := &list[i]
			pub, err := loadPublicKey(ctx, keysRepo, sh.RecipientID)
			if err != nil {
				return fmt.Errorf("recipient %s: %w", sh.RecipientID, err)
			}
			if sh.WrappedDEK, err = cryptox.WrapKey(newDEK, pub); err != nil {
				return err
			}
			if err := sharesRepo.Upsert(ctx, sh); err != nil {
				return fmt.Errorf("error reissuing share: %w", err)
			}
			reissued++
		}
		return nil
	})
	if err != nil {
		common.WipeByteArray(oldDEK)
		common.WipeByteArray(newDEK)
		return nil, nil, err
	}

	s.log.Info(ctx, "data key rotated", "entity_type", entityType, "entity_id", entityID, "shares_reissued", reissued)
	return oldDEK, newDEK, nil
}
