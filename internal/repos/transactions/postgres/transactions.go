package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	"github.com/google/uuid"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

func (r *transactionsRepo) Insert(tx *sql.Tx, e transactions.Entry) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (transaction_id, match_id, source, kind, from_account, to_account, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.TransactionID, e.MatchID, e.Source, string(e.Kind), e.From, e.To, e.Amount)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return transactions.ErrDuplicateTransaction
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// ListByMatch returns the journal of a match in the order it was written.
func (r *transactionsRepo) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]transactions.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, match_id, source, kind, from_account, to_account, amount, created_at
		FROM transactions
		WHERE match_id = $1
		ORDER BY seq
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []transactions.Entry

	for rows.Next() {
		var (
			e    transactions.Entry
			kind string
		)

		err = rows.Scan(&e.TransactionID, &e.MatchID, &e.Source, &kind, &e.From, &e.To, &e.Amount, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		e.Kind = transactions.Kind(kind)
		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
