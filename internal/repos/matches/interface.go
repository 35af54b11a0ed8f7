package matches

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/google/uuid"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchExists   = errors.New("match already exists")
)

// Record is a match as stored: live, or closed with its settlement.
type Record struct {
	Match    escrow.Match
	Winner   escrow.Identity
	Fee      uint64
	Payout   uint64
	ClosedAt int64
}

func (r Record) Closed() bool { return r.Match.State.Terminal() }

type Matches interface {
	Insert(tx *sql.Tx, m escrow.Match) error
	LockAndGet(tx *sql.Tx, id uuid.UUID) (escrow.Match, error)
	Update(tx *sql.Tx, m escrow.Match) error
	// Archive removes the live row and records the outcome in history.
	Archive(tx *sql.Tx, out escrow.Outcome) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	GetTx(tx *sql.Tx, id uuid.UUID) (Record, error)
	// ListExpired returns active matches whose settlement deadline is
	// strictly before now, oldest deadline first.
	ListExpired(ctx context.Context, now int64, limit int) ([]uuid.UUID, error)
}
