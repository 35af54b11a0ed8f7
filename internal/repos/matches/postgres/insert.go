package matches

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
)

func (r *matchesRepo) Insert(tx *sql.Tx, m escrow.Match) error {
	_, err := tx.Exec(`
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		m.ID, m.PlayerA.String(), m.PlayerB.String(), int64(m.Stake), m.State.String(),
		m.CreatedAt, m.JoinExpiryTS, m.SettleDeadlineTS, m.Vault.String(), int64(m.Reserve),
	)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return fmt.Errorf("insert match %s: %w", m.ID, matches.ErrMatchExists)
		}

		return fmt.Errorf("insert match: %w", err)
	}

	return nil
}

// Update persists the mutable fields of a live match.
func (r *matchesRepo) Update(tx *sql.Tx, m escrow.Match) error {
	res, err := tx.Exec(`
		UPDATE matches
		SET player_b = $2,
		    state = $3,
		    settle_deadline_ts = $4
		WHERE id = $1
	`, m.ID, m.PlayerB.String(), m.State.String(), m.SettleDeadlineTS)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("update match %s: %w", m.ID, matches.ErrMatchNotFound)
	}

	return nil
}
