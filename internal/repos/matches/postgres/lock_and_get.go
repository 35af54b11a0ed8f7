package matches

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
	"github.com/google/uuid"
)

// LockAndGet loads a live match and holds its row lock until tx ends.
func (r *matchesRepo) LockAndGet(tx *sql.Tx, id uuid.UUID) (escrow.Match, error) {
	m, err := scanMatch(tx.QueryRow(`
		SELECT `+matchColumns+`
		FROM matches
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return escrow.Match{}, fmt.Errorf("lock match %s: %w", id, matches.ErrMatchNotFound)
		}

		return escrow.Match{}, fmt.Errorf("lock/get match: %w", err)
	}

	return m, nil
}
