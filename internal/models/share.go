package models

import (
	"fmt"
	"strings"
	"time"
)

// Permissions describe what a share recipient may do with the data.
type Permissions struct {
	View    bool `json:"view"`
	Combine bool `json:"combine"`
	Reports bool `json:"reports"`
}

// ViewOnly is the permission set used when none is given.
var ViewOnly = Permissions{View: true}

// String renders p as a comma separated list, e.g. "view,reports".
func (p Permissions) String() string {
	var parts []string
	if p.View {
		parts = append(parts, "view")
	}
	if p.Combine {
		parts = append(parts, "combine")
	}
	if p.Reports {
		parts = append(parts, "reports")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParsePermissions parses the format produced by Permissions.String.
func ParsePermissions(s string) (Permissions, error) {
	var p Permissions
	if s == "" || s == "none" {
		return p, nil
	}
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "view":
			p.View = true
		case "combine":
			p.Combine = true
		case "reports":
			p.Reports = true
		default:
			return Permissions{}, fmt.Errorf("unknown permission %q", part)
		}
	}
	return p, nil
}

// DataShare grants RecipientID access to one entity. WrappedDEK is the
// entity's DEK encrypted under the recipient's RSA public key.
type DataShare struct {
	ID          string
	EntityID    string
	EntityType  EntityType
	OwnerID     string
	RecipientID string
	WrappedDEK  []byte
	Permissions Permissions
	CreatedAt   time.Time
}

// SharingDefault is a standing rule: every entity of EntityType (or any type
// when EntityType is EntityAll) created by OwnerID is shared with RecipientID.
type SharingDefault struct {
	ID          string
	OwnerID     string
	RecipientID string
	EntityType  EntityType
	Permissions Permissions
	CreatedAt   time.Time
}

// Matches reports whether the default applies to entities of type t.
func (d SharingDefault) Matches(t EntityType) bool {
	return d.EntityType == EntityAll || d.EntityType == t
}
