package accounts

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
)

func (r *accountsRepo) LockAndGetBalance(tx *sql.Tx, accountID string) (int64, error) {
	var balance int64

	err := tx.QueryRow(`
		SELECT balance
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("lock account %q: %w", accountID, accounts.ErrAccountNotFound)
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}
