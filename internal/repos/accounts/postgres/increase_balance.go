package accounts

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
)

// IncreaseBalance credits the account, creating it on first credit.
func (r *accountsRepo) IncreaseBalance(tx *sql.Tx, accountID string, amount int64) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (id, balance)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance
	`, accountID, amount)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeNumericOutOfRange) {
			return fmt.Errorf("credit %q: %w", accountID, accounts.ErrBalanceOverflow)
		}

		return fmt.Errorf("increase balance: %w", err)
	}

	return nil
}
