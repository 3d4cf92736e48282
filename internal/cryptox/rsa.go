package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"math/big"

	"github.com/dmitrijs2005/finvault/internal/common"
)

const (
	rsaBits = 2048

	// maxWrapPayload bounds WrapKey to key material, not bulk data.
	maxWrapPayload = 64

	pemPublicKey = "PUBLIC KEY"
)

var errBadPEM = errors.New("failed to decode PEM block containing public key")

// GenerateKeyPair creates a fresh RSA-2048 keypair.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, wrapErr("generate rsa key", err)
	}
	return priv, nil
}

// EncodePublicKey returns the PKIX, PEM-encoded form of pub.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", wrapErr("marshal public key", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der})), nil
}

// ParsePublicKey decodes a PEM public key produced by EncodePublicKey.
func ParsePublicKey(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil || block.Type != pemPublicKey {
		return nil, errBadPEM
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, wrapErr("parse public key", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

// MarshalPrivateKey returns the PKCS#1 DER encoding of priv. The result is
// secret and must only ever be passed to Seal and then wiped.
func MarshalPrivateKey(priv *rsa.PrivateKey) []byte {
	return x509.MarshalPKCS1PrivateKey(priv)
}

// ParsePrivateKey parses PKCS#1 DER bytes back into a private key.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, wrapErr("parse private key", err)
	}
	return priv, nil
}

// WrapKey encrypts a short key payload for the holder of pub using
// RSA-OAEP with SHA-256.
func WrapKey(payload []byte, pub *rsa.PublicKey) ([]byte, error) {
	if len(payload) > maxWrapPayload {
		return nil, common.ErrPayloadTooLarge
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, payload, nil)
	if err != nil {
		return nil, wrapErr("wrap key", err)
	}
	return ct, nil
}

// UnwrapKey reverses WrapKey. Decryption errors of any kind are reported as
// common.ErrAuthenticationFailed.
func UnwrapKey(ciphertext []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil || priv.D == nil || priv.D.Sign() == 0 {
		return nil, common.ErrAuthenticationFailed
	}
	payload, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailed
	}
	return payload, nil
}

// WipePrivateKey overwrites the secret integers of priv in place and drops
// its precomputed values. crypto/rsa keeps an internal copy of the key there
// that cannot be overwritten from outside the package; once dropped it is
// unreachable and priv can no longer decrypt.
func WipePrivateKey(priv *rsa.PrivateKey) {
	if priv == nil {
		return
	}
	wipeInt(priv.D)
	for _, p := range priv.Primes {
		wipeInt(p)
	}
	wipeInt(priv.Precomputed.Dp)
	wipeInt(priv.Precomputed.Dq)
	wipeInt(priv.Precomputed.Qinv)
	for i := range priv.Precomputed.CRTValues {
		wipeInt(priv.Precomputed.CRTValues[i].Exp)
		wipeInt(priv.Precomputed.CRTValues[i].Coeff)
		wipeInt(priv.Precomputed.CRTValues[i].R)
	}
	priv.Precomputed = rsa.PrecomputedValues{}
}

func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
