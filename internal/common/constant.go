package common

const (
	// KeySize is the length of every symmetric key in the system (UEK and DEK).
	KeySize = 32

	// SaltSize is the length of the per-user KDF salt.
	SaltSize = 16
)
