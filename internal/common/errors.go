// Package common defines shared constants and sentinel errors used across
// finvault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorUnauthorized covers both "no unlocked session" and "wrong password";
	// callers cannot tell the two apart.
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrTooManyAttempts is returned when password checks for a user are
	// being throttled.
	ErrTooManyAttempts = errors.New("too many attempts, try again later")
)

// Cryptographic errors.
var (
	// ErrAuthenticationFailed is returned when an AEAD open or an asymmetric
	// unwrap fails verification. Wrong keys and tampered bytes look the same.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidKeyLength indicates a symmetric key that is not 32 bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrPayloadTooLarge indicates an attempt to wrap more than key material.
	ErrPayloadTooLarge = errors.New("payload too large to wrap")
)

// Key custody and sharing errors.
var (
	ErrKeysAlreadyExist       = errors.New("encryption already enabled for user")
	ErrMissingCounterpartKeys = errors.New("recipient has not enabled encryption")
	ErrNotShared              = errors.New("entity is not shared with reader")
	ErrDEKExists              = errors.New("data key already exists for entity")
	ErrInvalidShare           = errors.New("invalid share")
)

// Field middleware errors.
var (
	ErrFieldUndecryptable = errors.New("field could not be decrypted")
	ErrUnknownEntityType  = errors.New("unknown entity type")
)
