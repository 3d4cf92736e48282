// Package session keeps unlocked user keys in memory.
//
// A Session owns a user's UEK and RSA private key. It never hands them out:
// callers seal and open data through it instead. Destroying a session waits
// for in-flight operations, then overwrites both keys.
package session

import (
	"crypto/rsa"
	"sync"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/cryptox"
)

type Session struct {
	userID string

	mu   sync.RWMutex
	uek  []byte
	priv *rsa.PrivateKey
	dead bool
}

// New takes ownership of uek and priv. The caller must not use or wipe
// them afterwards.
func New(userID string, uek []byte, priv *rsa.PrivateKey) *Session {
	return &Session{userID: userID, uek: uek, priv: priv}
}

func (s *Session) UserID() string { return s.userID }

// Alive reports whether the session has not been destroyed.
func (s *Session) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.dead
}

// SealWithUEK encrypts plaintext under the user's UEK.
func (s *Session) SealWithUEK(plaintext []byte) (*cryptox.Sealed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dead {
		return nil, common.ErrorUnauthorized
	}
	return cryptox.Seal(plaintext, s.uek)
}

// OpenWithUEK decrypts a value previously produced by SealWithUEK.
func (s *Session) OpenWithUEK(sealed *cryptox.Sealed) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dead {
		return nil, common.ErrorUnauthorized
	}
	return cryptox.Open(sealed, s.uek)
}

// UnwrapWithPrivateKey decrypts a key that was wrapped for this user's
// public key.
func (s *Session) UnwrapWithPrivateKey(wrapped []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dead {
		return nil, common.ErrorUnauthorized
	}
	return cryptox.UnwrapKey(wrapped, s.priv)
}

// Destroy wipes the key material. It is safe to call more than once.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}
	common.WipeByteArray(s.uek)
	cryptox.WipePrivateKey(s.priv)
	s.uek = nil
	s.priv = nil
	s.dead = true
}
