package matches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
	"github.com/google/uuid"
)

type queryRowFunc func(query string, args ...any) *sql.Row

// Get returns the live match, or its history record once closed.
func (r *matchesRepo) Get(ctx context.Context, id uuid.UUID) (matches.Record, error) {
	return getRecord(func(query string, args ...any) *sql.Row {
		return r.db.QueryRowContext(ctx, query, args...)
	}, id)
}

// GetTx is Get on the connection already held by tx.
func (r *matchesRepo) GetTx(tx *sql.Tx, id uuid.UUID) (matches.Record, error) {
	return getRecord(tx.QueryRow, id)
}

func getRecord(queryRow queryRowFunc, id uuid.UUID) (matches.Record, error) {
	m, err := scanMatch(queryRow(`
		SELECT `+matchColumns+`
		FROM matches
		WHERE id = $1
	`, id))
	if err == nil {
		return matches.Record{Match: m}, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return matches.Record{}, fmt.Errorf("get match: %w", err)
	}

	var (
		rec         matches.Record
		winner      string
		fee, payout int64
	)

	rec.Match, err = scanMatch(queryRow(`
		SELECT `+matchColumns+`, winner, fee, payout, closed_at
		FROM match_history
		WHERE id = $1
	`, id), &winner, &fee, &payout, &rec.ClosedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return matches.Record{}, matches.ErrMatchNotFound
		}

		return matches.Record{}, fmt.Errorf("get match history: %w", err)
	}

	rec.Winner = escrow.Identity(winner)
	rec.Fee = uint64(fee)
	rec.Payout = uint64(payout)

	return rec, nil
}

func (r *matchesRepo) ListExpired(ctx context.Context, now int64, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM matches
		WHERE state = 'active'
		  AND settle_deadline_ts < $1
		ORDER BY settle_deadline_ts, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired matches: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan match id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate expired matches: %w", err)
	}

	return ids, nil
}
