package dbx

import (
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
)

// ExpectOneRow checks that a write touched exactly one row. Zero rows map to
// common.ErrorNotFound.
func ExpectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
}
