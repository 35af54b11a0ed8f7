package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountNotEmpty   = errors.New("account balance is not zero")
	ErrBalanceOverflow   = errors.New("balance out of range")
)

// Accounts stores custodial balances keyed by identity. Player, fee vault
// and match vault balances all live here.
type Accounts interface {
	Exists(tx *sql.Tx, accountID string) error
	GetBalance(ctx context.Context, accountID string) (int64, error)
	LockAndGetBalance(tx *sql.Tx, accountID string) (int64, error)
	IncreaseBalance(tx *sql.Tx, accountID string, amount int64) error
	DecreaseBalance(tx *sql.Tx, accountID string, amount int64) error
	Open(tx *sql.Tx, accountID string) error
	Close(tx *sql.Tx, accountID string) error
}
