package session

import (
	"sync"
	"testing"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, userID string) (*Session, []byte) {
	t.Helper()
	priv, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	uek := cryptox.GenerateKey()
	return New(userID, uek, priv), uek
}

func TestSession_SealOpenUnwrap(t *testing.T) {
	priv, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	pub := priv.PublicKey
	s := New("alice", cryptox.GenerateKey(), priv)

	sealed, err := s.SealWithUEK([]byte("dek bytes"))
	require.NoError(t, err)
	plain, err := s.OpenWithUEK(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("dek bytes"), plain)

	wrapped, err := cryptox.WrapKey([]byte("shared dek"), &pub)
	require.NoError(t, err)
	got, err := s.UnwrapWithPrivateKey(wrapped)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared dek"), got)
	assert.Equal(t, "alice", s.UserID())
}

func TestSession_DestroyWipesAndRejects(t *testing.T) {
	s, uek := newTestSession(t, "alice")
	sealed, err := s.SealWithUEK([]byte("x"))
	require.NoError(t, err)

	s.Destroy()
	s.Destroy()

	assert.False(t, s.Alive())
	assert.Equal(t, make([]byte, len(uek)), uek, "uek buffer must be zeroed")

	_, err = s.OpenWithUEK(sealed)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = s.SealWithUEK([]byte("x"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = s.UnwrapWithPrivateKey([]byte("x"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestSession_InFlightOperationsFinishBeforeWipe(t *testing.T) {
	s, _ := newTestSession(t, "alice")
	sealed, err := s.SealWithUEK([]byte("balance"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plain, err := s.OpenWithUEK(sealed)
			if err == nil && string(plain) != "balance" {
				err = assert.AnError
			}
			results <- err
		}()
	}
	s.Destroy()
	wg.Wait()
	close(results)

	// every call either completed correctly or was refused, never garbage
	for err := range results {
		if err != nil {
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
		}
	}
}
