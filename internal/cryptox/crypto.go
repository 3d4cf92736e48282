// Package cryptox holds the stateless cryptographic primitives: password-based
// key derivation, AES-256-GCM sealing and RSA-OAEP key wrapping.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultKDFIterations is the PBKDF2 work factor for newly enabled users.
	DefaultKDFIterations = 600_000
	// MinKDFIterations is the lowest work factor accepted by configuration.
	MinKDFIterations = 600_000

	ivSize  = 12
	tagSize = 16
)

// Sealed is the output of Seal: GCM ciphertext with the IV and the
// authentication tag kept as separate values.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// DeriveMasterKey derives the 32-byte user encryption key (UEK) from a
// password and salt with PBKDF2-HMAC-SHA512. Identical inputs always give
// the identical key.
func DeriveMasterKey(password []byte, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, common.KeySize, sha512.New)
}

// GenerateKey returns a fresh random 32-byte symmetric key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(common.KeySize)
}

// GenerateSalt returns a fresh random KDF salt.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(common.SaltSize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != common.KeySize {
		return nil, common.ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with AES-256-GCM. A new random 12-byte
// IV is drawn for every call.
//
// Example:
//
//	key := cryptox.GenerateKey()
//	s, err := cryptox.Seal([]byte("Checking account"), key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	plain, err := cryptox.Open(s, key)
func Seal(plaintext, key []byte) (*Sealed, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(ivSize)
	out := aesgcm.Seal(nil, iv, plaintext, nil)

	n := len(out) - tagSize
	return &Sealed{
		Ciphertext: out[:n:n],
		IV:         iv,
		Tag:        out[n:],
	}, nil
}

// Open verifies and decrypts s under key. Any integrity failure (wrong key,
// flipped bit in ciphertext, IV or tag, truncated values) is reported as
// common.ErrAuthenticationFailed.
func Open(s *Sealed, key []byte) ([]byte, error) {
	if s == nil {
		return nil, common.ErrAuthenticationFailed
	}
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(s.IV) != ivSize || len(s.Tag) != tagSize {
		return nil, common.ErrAuthenticationFailed
	}

	buf := make([]byte, 0, len(s.Ciphertext)+tagSize)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)

	plaintext, err := aesgcm.Open(nil, s.IV, buf, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailed
	}
	return plaintext, nil
}

func wrapErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
