package services

import (
	"context"
	"crypto/x509"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableEncryption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	has, err := f.keys.HasKeys(ctx, alice)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, f.keys.EnableEncryption(ctx, alice, password("alice")))
	assert.True(t, f.keys.IsUnlocked(alice))

	has, err = f.keys.HasKeys(ctx, alice)
	require.NoError(t, err)
	assert.True(t, has)

	stored, err := f.rm.UserKeys(f.db).GetByUserID(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, testIterations, stored.KDFIterations)
	assert.Len(t, stored.Salt, common.SaltSize)
	_, err = x509.ParsePKCS1PrivateKey(stored.EncryptedPrivateKey)
	assert.Error(t, err, "private key must not be stored in the clear")

	err = f.keys.EnableEncryption(ctx, alice, password("alice"))
	assert.ErrorIs(t, err, common.ErrKeysAlreadyExist)

	err = f.keys.EnableEncryption(ctx, "nobody", password("nobody"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUnlockAndLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")

	f.keys.Lock(ctx, alice)
	assert.False(t, f.keys.IsUnlocked(alice))

	assert.ErrorIs(t, f.keys.Unlock(ctx, alice, []byte("wrong")), common.ErrorUnauthorized)
	assert.False(t, f.keys.IsUnlocked(alice))

	require.NoError(t, f.keys.Unlock(ctx, alice, password("alice")))
	assert.True(t, f.keys.IsUnlocked(alice))

	// unlocking again replaces the session
	require.NoError(t, f.keys.Unlock(ctx, alice, password("alice")))
	assert.Equal(t, 1, f.store.Len())

	bob := f.user(t, "bob")
	assert.ErrorIs(t, f.keys.Unlock(ctx, bob, password("bob")), common.ErrorUnauthorized)
}

func TestUnlock_CorruptedPrivateKeyLooksLikeWrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")
	f.keys.Lock(ctx, alice)

	_, err := f.db.Exec(`UPDATE user_keys SET private_key_tag = ? WHERE user_id = ?`, make([]byte, 16), alice)
	require.NoError(t, err)

	err = f.keys.Unlock(ctx, alice, password("alice"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.NotErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestUnlock_UsesStoredIterations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")
	f.keys.Lock(ctx, alice)

	stronger := NewKeyService(f.db, f.rm, f.store, WithKDFIterations(testIterations*2))
	require.NoError(t, stronger.Unlock(ctx, alice, password("alice")))
}

func TestUnlock_Throttled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")
	bob := f.enabled(t, "bob")

	limited := NewKeyService(f.db, f.rm, f.store, WithKDFIterations(testIterations),
		WithUnlockLimit(time.Hour, 2))

	assert.ErrorIs(t, limited.Unlock(ctx, alice, []byte("guess-1")), common.ErrorUnauthorized)
	assert.ErrorIs(t, limited.ChangePassword(ctx, alice, []byte("guess-2"), []byte("x")), common.ErrorUnauthorized)
	assert.ErrorIs(t, limited.Unlock(ctx, alice, password("alice")), common.ErrTooManyAttempts)

	require.NoError(t, limited.Unlock(ctx, bob, password("bob")), "limits are per user")
}

func TestGetPublicKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")
	bob := f.user(t, "bob")

	pub, err := f.keys.GetPublicKey(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2048, pub.N.BitLen())

	_, err = f.keys.GetPublicKey(ctx, bob)
	assert.ErrorIs(t, err, common.ErrMissingCounterpartKeys)
}

func TestChangePassword_RewrapsOwnedKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")
	bob := f.enabled(t, "bob")

	dek, err := f.deks.CreateDEK(ctx, models.EntityAccount, "acc-1", alice)
	require.NoError(t, err)
	_, err = f.sharing.ShareEntity(ctx, "acc-1", models.EntityAccount, alice, bob, models.ViewOnly)
	require.NoError(t, err)

	err = f.keys.ChangePassword(ctx, alice, []byte("wrong"), []byte("new-pw"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	require.NoError(t, f.keys.ChangePassword(ctx, alice, password("alice"), []byte("new-pw")))
	assert.True(t, f.keys.IsUnlocked(alice))

	got, err := f.deks.ResolveDEKForReader(ctx, models.EntityAccount, "acc-1", alice, alice)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	f.keys.Lock(ctx, alice)
	assert.ErrorIs(t, f.keys.Unlock(ctx, alice, password("alice")), common.ErrorUnauthorized)
	require.NoError(t, f.keys.Unlock(ctx, alice, []byte("new-pw")))

	got, err = f.deks.ResolveDEKForReader(ctx, models.EntityAccount, "acc-1", alice, alice)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	// the keypair is unchanged, so the share still works
	viaShare, err := f.deks.ResolveDEKForReader(ctx, models.EntityAccount, "acc-1", alice, bob)
	require.NoError(t, err)
	assert.Equal(t, dek, viaShare)
}

func TestChangePassword_RollsBackOnBadDEK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.enabled(t, "alice")

	_, err := f.deks.CreateDEK(ctx, models.EntityAccount, "acc-1", alice)
	require.NoError(t, err)
	_, err = f.db.Exec(`UPDATE deks SET auth_tag = ? WHERE entity_id = 'acc-1'`, make([]byte, 16))
	require.NoError(t, err)

	err = f.keys.ChangePassword(ctx, alice, password("alice"), []byte("new-pw"))
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)

	f.keys.Lock(ctx, alice)
	require.NoError(t, f.keys.Unlock(ctx, alice, password("alice")), "old password must still work")
}

// gatedStore holds the next Put open until release is closed.
type gatedStore struct {
	*session.MemoryStore
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (g *gatedStore) Put(userID string, s *session.Session) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.reached)
		<-g.release
	}
	g.MemoryStore.Put(userID, s)
}

func TestChangePassword_CreateDEKWaitsForNewSession(t *testing.T) {
	ctx := context.Background()
	mem := session.NewMemoryStore()
	gate := &gatedStore{MemoryStore: mem, reached: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWithStore(t, mem, gate)
	alice := f.enabled(t, "alice")
	newPassword := []byte("pw-alice-2")

	gate.armed.Store(true)
	changed := make(chan error, 1)
	go func() { changed <- f.keys.ChangePassword(ctx, alice, password("alice"), newPassword) }()
	<-gate.reached

	type result struct {
		dek []byte
		err error
	}
	created := make(chan result, 1)
	go func() {
		dek, err := f.deks.CreateDEK(ctx, models.EntityAccount, "acc-race", alice)
		created <- result{dek, err}
	}()

	assert.Never(t, func() bool { return len(created) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"data key created while the password change was in flight")

	close(gate.release)
	require.NoError(t, <-changed)
	res := <-created
	require.NoError(t, res.err)

	got, err := f.deks.ResolveDEKForReader(ctx, models.EntityAccount, "acc-race", alice, alice)
	require.NoError(t, err)
	assert.Equal(t, res.dek, got)

	f.keys.Lock(ctx, alice)
	require.NoError(t, f.keys.Unlock(ctx, alice, newPassword))
	got, err = f.deks.ResolveDEKForReader(ctx, models.EntityAccount, "acc-race", alice, alice)
	require.NoError(t, err)
	assert.Equal(t, res.dek, got)
}

func TestUserLocks_SerializePerUser(t *testing.T) {
	l := NewUserLocks()

	release := l.Lock("alice")
	other := l.Lock("bob")
	other()

	acquired := make(chan struct{})
	go func() {
		l.Lock("alice")()
		close(acquired)
	}()
	assert.Never(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	release()
	require.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
