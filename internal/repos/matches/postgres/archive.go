package matches

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
)

func (r *matchesRepo) Archive(tx *sql.Tx, out escrow.Outcome) error {
	m := out.Match

	res, err := tx.Exec(`DELETE FROM matches WHERE id = $1`, m.ID)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("archive match %s: %w", m.ID, matches.ErrMatchNotFound)
	}

	_, err = tx.Exec(`
		INSERT INTO match_history (`+matchColumns+`, winner, fee, payout, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		m.ID, m.PlayerA.String(), m.PlayerB.String(), int64(m.Stake), m.State.String(),
		m.CreatedAt, m.JoinExpiryTS, m.SettleDeadlineTS, m.Vault.String(), int64(m.Reserve),
		out.Winner.String(), int64(out.Fee), int64(out.Payout), out.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match history: %w", err)
	}

	return nil
}
