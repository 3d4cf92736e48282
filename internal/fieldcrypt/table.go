// Package fieldcrypt encrypts and decrypts the sensitive fields of finance
// records with an entity's DEK.
package fieldcrypt

import "github.com/dmitrijs2005/finvault/internal/models"

// Fields lists the sensitive fields of one entity type.
type Fields struct {
	Text    []string
	Numeric []string
}

// Table maps each encryptable entity type to its sensitive fields. Fields
// not listed here are never encrypted.
var Table = map[models.EntityType]Fields{
	models.EntityAccount: {
		Text:    []string{"name", "institution"},
		Numeric: []string{"balance"},
	},
	models.EntityTransaction: {
		Text:    []string{"description", "notes"},
		Numeric: []string{"amount"},
	},
	models.EntityRecurringItem: {
		Text:    []string{"name", "notes"},
		Numeric: []string{"amount"},
	},
	models.EntitySavingsGoal: {
		Text:    []string{"name", "notes"},
		Numeric: []string{"target_amount", "current_amount"},
	},
	models.EntityManualAsset: {
		Text:    []string{"name", "notes"},
		Numeric: []string{"value"},
	},
	models.EntityManualLiability: {
		Text:    []string{"name", "notes"},
		Numeric: []string{"value"},
	},
	models.EntityInvestmentAccount: {
		Text:    []string{"name", "institution"},
		Numeric: []string{"balance"},
	},
}

func fieldsFor(t models.EntityType) (Fields, bool) {
	f, ok := Table[t]
	return f, ok
}
