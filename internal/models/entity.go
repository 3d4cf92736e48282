// Package models defines the rows persisted by finvault and the identifiers
// shared between layers.
package models

import "fmt"

// EntityType names a kind of encryptable record owned by a household member.
type EntityType string

const (
	EntityAccount           EntityType = "account"
	EntityTransaction       EntityType = "transaction"
	EntityRecurringItem     EntityType = "recurring_item"
	EntitySavingsGoal       EntityType = "savings_goal"
	EntityManualAsset       EntityType = "manual_asset"
	EntityManualLiability   EntityType = "manual_liability"
	EntityInvestmentAccount EntityType = "investment_account"

	// EntityAll is only valid on a SharingDefault and matches every type.
	EntityAll EntityType = "all"
)

// EntityTypes lists every concrete encryptable type.
var EntityTypes = []EntityType{
	EntityAccount,
	EntityTransaction,
	EntityRecurringItem,
	EntitySavingsGoal,
	EntityManualAsset,
	EntityManualLiability,
	EntityInvestmentAccount,
}

// Valid reports whether t is a concrete encryptable type.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEntityType converts user input into an EntityType. When allowAll is
// set, "all" is accepted as well.
func ParseEntityType(s string, allowAll bool) (EntityType, error) {
	t := EntityType(s)
	if t.Valid() || (allowAll && t == EntityAll) {
		return t, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}
