package services

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/dmitrijs2005/finvault/internal/dbx"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
	"github.com/dmitrijs2005/finvault/internal/repositories/userkeys"
	"github.com/dmitrijs2005/finvault/internal/session"
)

// KeyService mints and protects per-user keypairs and opens sessions.
type KeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    session.Store
	iterations  int
	attempts    *attemptLimiter
	locks       *UserLocks
	log         logging.Logger
}

func NewKeyService(db *sql.DB, m repomanager.RepositoryManager, sessions session.Store, opts ...Option) *KeyService {
	o := buildOptions(opts)
	return &KeyService{
		db:          db,
		repomanager: m,
		sessions:    sessions,
		iterations:  o.iterations,
		attempts:    newAttemptLimiter(o.unlockEvery, o.unlockBurst),
		locks:       o.locks,
		log:         o.log,
	}
}

// EnableEncryption creates the user's keypair, protects the private key
// with a key derived from password and leaves the user unlocked.
func (s *KeyService) EnableEncryption(ctx context.Context, userID string, password []byte) error {
	defer s.locks.Lock(userID)()

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		return fmt.Errorf("error loading user: %w", err)
	}

	repo := s.repomanager.UserKeys(s.db)
	_, err := repo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		return common.ErrKeysAlreadyExist
	case !errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("error loading keys: %w", err)
	}

	salt := cryptox.GenerateSalt()
	uek := cryptox.DeriveMasterKey(password, salt, s.iterations)

	priv, err := cryptox.GenerateKeyPair()
	if err != nil {
		common.WipeByteArray(uek)
		return err
	}

	keys, err := s.protect(userID, priv, uek, salt)
	if err != nil {
		common.WipeByteArray(uek)
		cryptox.WipePrivateKey(priv)
		return err
	}

	if err := repo.Create(ctx, keys); err != nil {
		common.WipeByteArray(uek)
		cryptox.WipePrivateKey(priv)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrKeysAlreadyExist
		}
		return fmt.Errorf("error saving keys: %w", err)
	}

	s.sessions.Put(userID, session.New(userID, uek, priv))
	s.log.Info(ctx, "encryption enabled", "user_id", userID)
	return nil
}

// protect builds a UserKeys row holding priv sealed under uek.
func (s *KeyService) protect(userID string, priv *rsa.PrivateKey, uek, salt []byte) (*models.UserKeys, error) {
	pub, err := cryptox.EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	der := cryptox.MarshalPrivateKey(priv)
	defer common.WipeByteArray(der)

	sealed, err := cryptox.Seal(der, uek)
	if err != nil {
		return nil, err
	}

	return &models.UserKeys{
		UserID:              userID,
		Salt:                salt,
		KDFIterations:       s.iterations,
		PublicKey:           pub,
		EncryptedPrivateKey: sealed.Ciphertext,
		PrivateKeyIV:        sealed.IV,
		PrivateKeyTag:       sealed.Tag,
	}, nil
}

// openPrivateKey derives the UEK from password and decrypts the stored
// private key. Any failure is reported as common.ErrorUnauthorized.
func openPrivateKey(keys *models.UserKeys, password []byte) ([]byte, *rsa.PrivateKey, error) {
	uek := cryptox.DeriveMasterKey(password, keys.Salt, keys.KDFIterations)

	der, err := cryptox.Open(&cryptox.Sealed{
		Ciphertext: keys.EncryptedPrivateKey,
		IV:         keys.PrivateKeyIV,
		Tag:        keys.PrivateKeyTag,
	}, uek)
	if err != nil {
		common.WipeByteArray(uek)
		return nil, nil, common.ErrorUnauthorized
	}
	defer common.WipeByteArray(der)

	priv, err := cryptox.ParsePrivateKey(der)
	if err != nil {
		common.WipeByteArray(uek)
		return nil, nil, common.ErrorUnauthorized
	}
	return uek, priv, nil
}

func (s *KeyService) loadKeysForAuth(ctx context.Context, userID string) (*models.UserKeys, error) {
	keys, err := s.repomanager.UserKeys(s.db).GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading keys: %w", err)
	}
	return keys, nil
}

// Unlock opens a session for userID. Missing keys, a wrong password and a
// corrupted private key all return common.ErrorUnauthorized. Attempts over
// the configured limit return common.ErrTooManyAttempts without checking
// the password.
func (s *KeyService) Unlock(ctx context.Context, userID string, password []byte) error {
	if !s.attempts.allow(userID) {
		s.log.Warn(ctx, "unlock throttled", "user_id", userID)
		return common.ErrTooManyAttempts
	}
	defer s.locks.Lock(userID)()

	keys, err := s.loadKeysForAuth(ctx, userID)
	if err != nil {
		return err
	}

	uek, priv, err := openPrivateKey(keys, password)
	if err != nil {
		s.log.Warn(ctx, "unlock failed", "user_id", userID)
		return err
	}

	s.sessions.Put(userID, session.New(userID, uek, priv))
	s.log.Info(ctx, "user unlocked", "user_id", userID)
	return nil
}

// Lock destroys the user's session, wiping its keys.
func (s *KeyService) Lock(ctx context.Context, userID string) {
	if s.sessions.Delete(userID) {
		s.log.Info(ctx, "user locked", "user_id", userID)
	}
}

// IsUnlocked does not count as activity.
func (s *KeyService) IsUnlocked(userID string) bool {
	sess, ok := s.sessions.Peek(userID)
	return ok && sess.Alive()
}

func (s *KeyService) HasKeys(ctx context.Context, userID string) (bool, error) {
	_, err := s.repomanager.UserKeys(s.db).GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetPublicKey returns common.ErrMissingCounterpartKeys when the user never
// enabled encryption.
func (s *KeyService) GetPublicKey(ctx context.Context, userID string) (*rsa.PublicKey, error) {
	return loadPublicKey(ctx, s.repomanager.UserKeys(s.db), userID)
}

func loadPublicKey(ctx context.Context, repo userkeys.Repository, userID string) (*rsa.PublicKey, error) {
	keys, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrMissingCounterpartKeys
		}
		return nil, err
	}
	return cryptox.ParsePublicKey(keys.PublicKey)
}

// ChangePassword re-protects the private key under a key derived from
// newPassword and re-wraps every DEK the user owns, in one transaction.
// The keypair does not change, so existing shares stay valid. DEK creation
// and rotation for the user wait until the new session is in place.
func (s *KeyService) ChangePassword(ctx context.Context, userID string, oldPassword, newPassword []byte) error {
	if !s.attempts.allow(userID) {
		s.log.Warn(ctx, "password change throttled", "user_id", userID)
		return common.ErrTooManyAttempts
	}
	// held until the new session is installed
	defer s.locks.Lock(userID)()

	keys, err := s.loadKeysForAuth(ctx, userID)
	if err != nil {
		return err
	}

	oldUEK, priv, err := openPrivateKey(keys, oldPassword)
	if err != nil {
		s.log.Warn(ctx, "password change rejected", "user_id", userID)
		return err
	}
	defer common.WipeByteArray(oldUEK)

	salt := cryptox.GenerateSalt()
	newUEK := cryptox.DeriveMasterKey(newPassword, salt, s.iterations)

	updated, err := s.protect(userID, priv, newUEK, salt)
	if err != nil {
		common.WipeByteArray(newUEK)
		cryptox.WipePrivateKey(priv)
		return err
	}

	var rewrapped int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.UserKeys(tx).UpdateProtection(ctx, updated); err != nil {
			return fmt.Errorf("error updating keys: %w", err)
		}

		deksRepo := s.repomanager.DEKs(tx)
		owned, err := deksRepo.ListByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("error listing data keys: %w", err)
		}
		for i := range owned {
			d := &owned[i]
			if err := rewrapDEK(d, oldUEK, newUEK); err != nil {
				return fmt.Errorf("rewrap %s/%s: %w", d.EntityType, d.EntityID, err)
			}
			if err := deksRepo.UpdateWrapping(ctx, d); err != nil {
				return fmt.Errorf("error updating data key: %w", err)
			}
			rewrapped++
		}
		return nil
	})
	if err != nil {
		common.WipeByteArray(newUEK)
		cryptox.WipePrivateKey(priv)
		return err
	}

	s.sessions.Put(userID, session.New(userID, newUEK, priv))
	s.log.Info(ctx, "password changed", "user_id", userID, "deks_rewrapped", rewrapped)
	return nil
}

func rewrapDEK(d *models.DEK, from, to []byte) error {
	raw, err := cryptox.Open(&cryptox.Sealed{Ciphertext: d.WrappedDEK, IV: d.IV, Tag: d.AuthTag}, from)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(raw)

	sealed, err := cryptox.Seal(raw, to)
	if err != nil {
		return err
	}
	d.WrappedDEK, d.IV, d.AuthTag = sealed.Ciphertext, sealed.IV, sealed.Tag
	return nil
}
