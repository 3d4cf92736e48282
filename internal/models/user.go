package models

import "time"

// User is a household member.
type User struct {
	ID        string
	Name      string
	Color     string
	IsDefault bool
	CreatedAt time.Time
}

// UserKeys is the persisted key material of a user who enabled encryption.
// The private key is stored only as AES-GCM ciphertext under the user's UEK.
type UserKeys struct {
	UserID        string
	Salt          []byte
	KDFIterations int

	// PublicKey is the PEM-encoded RSA public key.
	PublicKey string

	EncryptedPrivateKey []byte
	PrivateKeyIV        []byte
	PrivateKeyTag       []byte

	CreatedAt time.Time
}
