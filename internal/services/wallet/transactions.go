package wallet

import (
	"errors"

	"github.com/fastprodman/pvpescrow/internal/escrow"
)

type SourceType string

const (
	SourceGame    SourceType = "game"
	SourceServer  SourceType = "server"
	SourcePayment SourceType = "payment"
)

type Direction string

const (
	Deposit  Direction = "deposit"
	Withdraw Direction = "withdraw"
)

// Transaction moves funds between a player's balance and the outside
// world. TransactionID makes it idempotent.
type Transaction struct {
	TransactionID string
	AccountID     escrow.Identity
	Source        SourceType
	Direction     Direction
	AmountMinor   int64
}

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrVaultAccount     = errors.New("vault accounts are moved by match operations only")
)
