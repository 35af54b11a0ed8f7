package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
	pgaccounts "github.com/fastprodman/pvpescrow/internal/repos/accounts/postgres"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/pvpescrow/internal/repos/transactions/postgres"
)

type WalletService struct {
	db       *sql.DB
	accounts accounts.Accounts
	txns     transactions.Transactions
}

func New(dbx *sql.DB) *WalletService {
	return &WalletService{
		db:       dbx,
		accounts: pgaccounts.New(dbx),
		txns:     pgtransactions.New(dbx),
	}
}

// ProcessTransaction runs the full flow in a single DB transaction:
//
// 1) Refuse vault accounts and non-positive amounts.
// 2) Insert the journal entry first (unique-violation -> ErrDuplicateTransaction).
// 3) Deposit: credit, creating the account on first deposit.
// 4) Withdraw: lock the row (FOR UPDATE), pre-check, debit.
func (s *WalletService) ProcessTransaction(ctx context.Context, transaction Transaction) error {
	if transaction.AccountID.IsVault() {
		return fmt.Errorf("process transaction %s: %w", transaction.AccountID, ErrVaultAccount)
	}

	if transaction.AmountMinor <= 0 {
		return fmt.Errorf("process transaction: %w", ErrInvalidAmount)
	}

	entry := transactions.Entry{
		TransactionID: transaction.TransactionID,
		Source:        string(transaction.Source),
		Amount:        transaction.AmountMinor,
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		account := transaction.AccountID.String()

		switch transaction.Direction {
		case Deposit:
			entry.Kind = transactions.KindDeposit
			entry.To = account

		case Withdraw:
			entry.Kind = transactions.KindWithdraw
			entry.From = account

		default:
			return fmt.Errorf("%w: %q", ErrInvalidDirection, transaction.Direction)
		}

		err := s.txns.Insert(tx, entry)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if transaction.Direction == Deposit {
			err = s.accounts.IncreaseBalance(tx, account, transaction.AmountMinor)
			if err != nil {
				return fmt.Errorf("increase balance: %w", err)
			}

			return nil
		}

		balance, err := s.accounts.LockAndGetBalance(tx, account)
		if err != nil {
			return fmt.Errorf("lock and get balance: %w", err)
		}

		if balance < transaction.AmountMinor {
			return fmt.Errorf("pre-check decrease: %w", accounts.ErrInsufficientFunds)
		}

		err = s.accounts.DecreaseBalance(tx, account, transaction.AmountMinor)
		if err != nil {
			return fmt.Errorf("decrease balance: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("process transaction: %w", err)
	}

	slog.Info("wallet transaction applied",
		"transaction_id", transaction.TransactionID, "account", transaction.AccountID,
		"direction", transaction.Direction, "source", transaction.Source, "amount", transaction.AmountMinor)

	return nil
}

// GetBalance returns the account balance (no locks; suitable for the GET endpoint).
func (s *WalletService) GetBalance(ctx context.Context, accountID escrow.Identity) (int64, error) {
	balance, err := s.accounts.GetBalance(ctx, accountID.String())
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// IsClientError reports whether err was caused by the request rather than
// the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrVaultAccount)
}
