package matches

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
)

var _ matches.Matches = (*matchesRepo)(nil)

type matchesRepo struct{ db *sql.DB }

func New(db *sql.DB) *matchesRepo {
	return &matchesRepo{db: db}
}

const matchColumns = `id, player_a, player_b, stake, state, created_at, join_expiry_ts, settle_deadline_ts, vault, reserve`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner, extra ...any) (escrow.Match, error) {
	var (
		m              escrow.Match
		playerA        string
		playerB        string
		vault          string
		stake, reserve int64
		state          string
	)

	dest := append([]any{
		&m.ID, &playerA, &playerB, &stake, &state,
		&m.CreatedAt, &m.JoinExpiryTS, &m.SettleDeadlineTS, &vault, &reserve,
	}, extra...)

	err := row.Scan(dest...)
	if err != nil {
		return escrow.Match{}, err
	}

	m.State, err = escrow.ParseState(state)
	if err != nil {
		return escrow.Match{}, fmt.Errorf("decode match %s: %w", m.ID, err)
	}

	m.PlayerA = escrow.Identity(playerA)
	m.PlayerB = escrow.Identity(playerB)
	m.Vault = escrow.Identity(vault)
	m.Stake = uint64(stake)
	m.Reserve = uint64(reserve)

	return m, nil
}
