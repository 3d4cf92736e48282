package models

import "time"

// DEK is the owner-wrapped data encryption key of one entity. A record
// exists exactly while the entity is encrypted.
type DEK struct {
	EntityID   string
	EntityType EntityType
	OwnerID    string

	WrappedDEK []byte
	IV         []byte
	AuthTag    []byte

	CreatedAt time.Time
}
