package accounts

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
)

// Open creates an empty account. Match vaults are opened this way so a
// stale vault row from a previous match can never be reused.
func (r *accountsRepo) Open(tx *sql.Tx, accountID string) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (id, balance)
		VALUES ($1, 0)
	`, accountID)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return fmt.Errorf("open %q: %w", accountID, accounts.ErrAccountExists)
		}

		return fmt.Errorf("open account: %w", err)
	}

	return nil
}

// Close deletes an account whose balance is zero.
func (r *accountsRepo) Close(tx *sql.Tx, accountID string) error {
	res, err := tx.Exec(`
		DELETE FROM accounts
		WHERE id = $1
		  AND balance = 0
	`, accountID)
	if err != nil {
		return fmt.Errorf("close account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 1 {
		return nil
	}

	err = r.Exists(tx, accountID)
	if err != nil {
		return fmt.Errorf("close %q: %w", accountID, err)
	}

	return fmt.Errorf("close %q: %w", accountID, accounts.ErrAccountNotEmpty)
}
