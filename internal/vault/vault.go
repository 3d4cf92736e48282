// Package vault is the entry point for application code that stores
// finance records: session handling, per-entity encryption and sharing.
//
// A typical write of a new encrypted account:
//
//	rec, err := v.EncryptNewEntity(ctx, models.EntityAccount, id, ownerID, fieldcrypt.Record{
//	    "name":    "Joint checking",
//	    "balance": int64(120000),
//	})
//	// persist rec with is_encrypted = true
//
// and a listing:
//
//	items, err := v.DecryptEntityList(ctx, models.EntityAccount, rows, readerID)
package vault

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
	"github.com/dmitrijs2005/finvault/internal/services"
	"github.com/dmitrijs2005/finvault/internal/session"
)

type Vault struct {
	sessions session.Store
	users    *services.UserService
	keys     *services.KeyService
	deks     *services.DEKService
	sharing  *services.SharingService
	fields   *fieldcrypt.Middleware
	// strict never defaults a field; used where a lossy read would
	// destroy data (rotation, disabling encryption).
	strict *fieldcrypt.Middleware
	log    logging.Logger
}

type settings struct {
	store       session.Store
	iterations  int
	idle        time.Duration
	unlockEvery time.Duration
	unlockBurst int
	policy      fieldcrypt.Policy
	log         logging.Logger
}

type Option func(*settings)

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(s session.Store) Option {
	return func(c *settings) { c.store = s }
}

func WithKDFIterations(n int) Option {
	return func(c *settings) { c.iterations = n }
}

// WithIdleTimeout auto-locks users after d without activity. It has no
// effect together with WithSessionStore.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *settings) { c.idle = d }
}

// WithUnlockLimit throttles password checks to burst attempts per user,
// refilled at one per every.
func WithUnlockLimit(every time.Duration, burst int) Option {
	return func(c *settings) {
		c.unlockEvery = every
		c.unlockBurst = burst
	}
}

func WithDecryptPolicy(p fieldcrypt.Policy) Option {
	return func(c *settings) { c.policy = p }
}

func WithLogger(l logging.Logger) Option {
	return func(c *settings) { c.log = l }
}

func New(db *sql.DB, m repomanager.RepositoryManager, opts ...Option) *Vault {
	cfg := settings{log: logging.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.store == nil {
		cfg.store = session.NewMemoryStore(session.WithIdleTimeout(cfg.idle), session.WithLogger(cfg.log))
	}

	svcOpts := []services.Option{
		services.WithLogger(cfg.log),
		services.WithUnlockLimit(cfg.unlockEvery, cfg.unlockBurst),
		services.WithUserLocks(services.NewUserLocks()),
	}
	if cfg.iterations > 0 {
		svcOpts = append(svcOpts, services.WithKDFIterations(cfg.iterations))
	}

	deks := services.NewDEKService(db, m, cfg.store, svcOpts...)
	return &Vault{
		sessions: cfg.store,
		users:    services.NewUserService(db, m),
		keys:     services.NewKeyService(db, m, cfg.store, svcOpts...),
		deks:     deks,
		sharing:  services.NewSharingService(db, m, deks, svcOpts...),
		fields:   fieldcrypt.New(deks, fieldcrypt.WithPolicy(cfg.policy), fieldcrypt.WithLogger(cfg.log)),
		strict:   fieldcrypt.New(deks, fieldcrypt.WithPolicy(fieldcrypt.PolicyPropagate), fieldcrypt.WithLogger(cfg.log)),
		log:      cfg.log,
	}
}

// Close locks every user.
func (v *Vault) Close() {
	v.sessions.Close()
}

// Users

func (v *Vault) CreateUser(ctx context.Context, name, color string, isDefault bool) (*models.User, error) {
	return v.users.Create(ctx, name, color, isDefault)
}

func (v *Vault) ListUsers(ctx context.Context) ([]models.User, error) {
	return v.users.List(ctx)
}

func (v *Vault) HasKeys(ctx context.Context, userID string) (bool, error) {
	return v.keys.HasKeys(ctx, userID)
}

// Session

func (v *Vault) EnableEncryption(ctx context.Context, userID string, password []byte) error {
	return v.keys.EnableEncryption(ctx, userID, password)
}

// Unlock reports whether the password opened the user's keys. The reason
// for a failure is logged, not returned.
func (v *Vault) Unlock(ctx context.Context, userID string, password []byte) bool {
	if err := v.keys.Unlock(ctx, userID, password); err != nil {
		if !errors.Is(err, common.ErrorUnauthorized) && !errors.Is(err, common.ErrTooManyAttempts) {
			v.log.Error(ctx, "unlock error", "user_id", userID, "error", err.Error())
		}
		return false
	}
	return true
}

func (v *Vault) Lock(ctx context.Context, userID string) {
	v.keys.Lock(ctx, userID)
}

func (v *Vault) IsUnlocked(userID string) bool {
	return v.keys.IsUnlocked(userID)
}

func (v *Vault) ChangePassword(ctx context.Context, userID string, oldPassword, newPassword []byte) error {
	return v.keys.ChangePassword(ctx, userID, oldPassword, newPassword)
}

// Per-entity encryption

func (v *Vault) CreateDEK(ctx context.Context, entityType models.EntityType, entityID, ownerID string) ([]byte, error) {
	return v.deks.CreateDEK(ctx, entityType, entityID, ownerID)
}

// ResolveDEK returns the entity's DEK for readerID, or nil when the reader
// cannot obtain it for any reason.
func (v *Vault) ResolveDEK(ctx context.Context, entityType models.EntityType, entityID, ownerID, readerID string) []byte {
	dek, err := v.deks.ResolveDEKForReader(ctx, entityType, entityID, ownerID, readerID)
	if err != nil {
		v.log.Debug(ctx, "data key not resolved", "entity_type", entityType, "entity_id", entityID,
			"reader_id", readerID, "error", err.Error())
		return nil
	}
	return dek
}

func (v *Vault) EncryptFields(entityType models.EntityType, data fieldcrypt.Record, dek []byte) (fieldcrypt.Record, error) {
	return v.fields.EncryptFields(entityType, data, dek)
}

func (v *Vault) DecryptFields(ctx context.Context, entityType models.EntityType, data fieldcrypt.Record, dek []byte) (fieldcrypt.Record, error) {
	return v.fields.DecryptFields(ctx, entityType, data, dek)
}

func (v *Vault) DecryptEntityList(ctx context.Context, entityType models.EntityType, items []fieldcrypt.Entity, readerID string) ([]fieldcrypt.Entity, error) {
	return v.fields.DecryptEntityList(ctx, entityType, items, readerID)
}

// EncryptNewEntity turns a plaintext entity into an encrypted one: it mints
// the DEK, encrypts the sensitive fields and applies the owner's sharing
// defaults. On failure nothing is left behind.
func (v *Vault) EncryptNewEntity(ctx context.Context, entityType models.EntityType, entityID, ownerID string, data fieldcrypt.Record) (fieldcrypt.Record, error) {
	dek, err := v.deks.CreateDEK(ctx, entityType, entityID, ownerID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dek)

	enc, err := v.fields.EncryptFields(entityType, data, dek)
	if err == nil {
		_, err = v.sharing.ApplyBlanketShares(ctx, entityType, entityID, ownerID, dek)
	}
	if err != nil {
		if cleanupErr := v.deks.DeleteEntity(ctx, entityType, entityID); cleanupErr != nil {
			v.log.Error(ctx, "cleanup after failed encryption", "entity_type", entityType,
				"entity_id", entityID, "error", cleanupErr.Error())
		}
		return nil, err
	}
	return enc, nil
}

// DecryptEntity returns the plain fields of one entity for readerID.
// Unencrypted entities are returned as a copy.
func (v *Vault) DecryptEntity(ctx context.Context, entityType models.EntityType, e fieldcrypt.Entity, readerID string) (fieldcrypt.Record, error) {
	if !e.IsEncrypted {
		return e.Fields.Clone(), nil
	}
	dek, err := v.deks.ResolveDEKForReader(ctx, entityType, e.ID, e.OwnerID, readerID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dek)
	return v.fields.DecryptFields(ctx, entityType, e.Fields, dek)
}

// DeleteEntity removes the entity's DEK and all of its shares.
func (v *Vault) DeleteEntity(ctx context.Context, entityType models.EntityType, entityID string) error {
	return v.deks.DeleteEntity(ctx, entityType, entityID)
}

// RotateEntityKey gives the entity a fresh DEK, re-issues its shares and
// returns its fields re-encrypted under the new key. The caller must store
// the returned record; the old ciphertext no longer opens.
func (v *Vault) RotateEntityKey(ctx context.Context, entityType models.EntityType, e fieldcrypt.Entity) (fieldcrypt.Record, error) {
	if !e.IsEncrypted {
		return nil, fmt.Errorf("entity %s is not encrypted", e.ID)
	}

	current, err := v.deks.ResolveDEKForReader(ctx, entityType, e.ID, e.OwnerID, e.OwnerID)
	if err != nil {
		return nil, err
	}
	plain, err := v.strict.DecryptFields(ctx, entityType, e.Fields, current)
	if err != nil {
		common.WipeByteArray(current)
		return nil, err
	}

	oldDEK, newDEK, err := v.deks.RotateDEK(ctx, entityType, e.ID, e.OwnerID)
	if err != nil {
		common.WipeByteArray(current)
		return nil, err
	}
	defer common.WipeByteArray(oldDEK)
	defer common.WipeByteArray(newDEK)

	same := bytes.Equal(current, oldDEK)
	common.WipeByteArray(current)
	if !same {
		// rotated concurrently; plain came from a key that is gone
		return nil, fmt.Errorf("entity %s: data key changed during rotation", e.ID)
	}

	return v.fields.EncryptFields(entityType, plain, newDEK)
}

// DisableEntityEncryption decrypts the entity for its owner and deletes its
// DEK and shares. The caller must store the returned plaintext record with
// the encrypted flag cleared.
func (v *Vault) DisableEntityEncryption(ctx context.Context, entityType models.EntityType, e fieldcrypt.Entity) (fieldcrypt.Record, error) {
	if !e.IsEncrypted {
		return e.Fields.Clone(), nil
	}

	dek, err := v.deks.ResolveDEKForReader(ctx, entityType, e.ID, e.OwnerID, e.OwnerID)
	if err != nil {
		return nil, err
	}
	plain, err := v.strict.DecryptFields(ctx, entityType, e.Fields, dek)
	common.WipeByteArray(dek)
	if err != nil {
		return nil, err
	}

	if err := v.deks.DeleteEntity(ctx, entityType, e.ID); err != nil {
		return nil, err
	}
	return plain, nil
}

// Sharing

func (v *Vault) ShareEntity(ctx context.Context, entityID string, entityType models.EntityType, ownerID, recipientID string, perms models.Permissions) (*models.DataShare, error) {
	return v.sharing.ShareEntity(ctx, entityID, entityType, ownerID, recipientID, perms)
}

func (v *Vault) GetSharesForEntity(ctx context.Context, entityID string, entityType models.EntityType) ([]models.DataShare, error) {
	return v.sharing.GetSharesForEntity(ctx, entityID, entityType)
}

// GetSharesForRecipient counts as activity of the recipient.
func (v *Vault) GetSharesForRecipient(ctx context.Context, recipientID string) ([]models.DataShare, error) {
	v.sessions.Touch(recipientID)
	return v.sharing.GetSharesForRecipient(ctx, recipientID)
}

func (v *Vault) Revoke(ctx context.Context, entityID string, entityType models.EntityType, recipientID string) error {
	return v.sharing.Revoke(ctx, entityID, entityType, recipientID)
}

// SetSharingDefault and RemoveSharingDefault count as activity of the
// owner, although neither needs the owner's keys.
func (v *Vault) SetSharingDefault(ctx context.Context, ownerID, recipientID string, entityType models.EntityType, perms models.Permissions) (*models.SharingDefault, error) {
	v.sessions.Touch(ownerID)
	return v.sharing.SetSharingDefault(ctx, ownerID, recipientID, entityType, perms)
}

func (v *Vault) GetSharingDefaults(ctx context.Context, ownerID string, entityType models.EntityType) ([]models.SharingDefault, error) {
	return v.sharing.GetSharingDefaults(ctx, ownerID, entityType)
}

func (v *Vault) RemoveSharingDefault(ctx context.Context, ownerID, recipientID string, entityType models.EntityType) error {
	v.sessions.Touch(ownerID)
	return v.sharing.RemoveSharingDefault(ctx, ownerID, recipientID, entityType)
}
