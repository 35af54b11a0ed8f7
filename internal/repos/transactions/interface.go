package transactions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateTransaction = errors.New("duplicate transaction")

type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindStake    Kind = "stake"
	KindFee      Kind = "fee"
	KindPayout   Kind = "payout"
	KindRefund   Kind = "refund"
	KindReserve  Kind = "reserve"
)

// Entry is one balance movement. MatchID is null for wallet funding.
// From or To is empty when the movement crosses the system boundary.
type Entry struct {
	TransactionID string
	MatchID       uuid.NullUUID
	Source        string
	Kind          Kind
	From          string
	To            string
	Amount        int64
	CreatedAt     time.Time
}

type Transactions interface {
	Insert(tx *sql.Tx, entry Entry) error
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]Entry, error)
}
