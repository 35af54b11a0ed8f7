package transactions

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/fastprodman/pvpescrow/internal/infra/pgtestutil"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTransactions_Insert(t *testing.T) {
	t.Parallel()

	matchID := uuid.New()

	tests := []struct {
		name    string
		seed    func(t *testing.T, db *sql.DB)
		entry   transactions.Entry
		wantErr error
	}{
		{
			name: "ok_deposit",
			entry: transactions.Entry{
				TransactionID: "tx_123", Source: "payment", Kind: transactions.KindDeposit,
				To: "alice", Amount: 100,
			},
		},
		{
			name: "ok_stake_with_match",
			entry: transactions.Entry{
				TransactionID: "tx_stake", MatchID: uuid.NullUUID{UUID: matchID, Valid: true},
				Source: "escrow", Kind: transactions.KindStake, From: "alice", To: "vault:aa", Amount: 100,
			},
		},
		{
			name: "duplicate_transaction",
			seed: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`
					INSERT INTO transactions (transaction_id, source, kind, to_account, amount)
					VALUES ($1, 'payment', 'deposit', 'alice', 10)
				`, "tx_dup")
				if err != nil {
					t.Fatalf("seed tx: %v", err)
				}
			},
			entry: transactions.Entry{
				TransactionID: "tx_dup", Source: "payment", Kind: transactions.KindDeposit,
				To: "alice", Amount: 100,
			},
			wantErr: transactions.ErrDuplicateTransaction,
		},
		{
			name: "unknown_kind_check_violation",
			entry: transactions.Entry{
				TransactionID: "tx_bad", Source: "payment", Kind: "bonus", To: "alice", Amount: 100,
			},
			wantErr: &pgconn.PgError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			repo := New(db)

			if tt.seed != nil {
				tt.seed(t, db)
			}

			tx, err := db.BeginTx(t.Context(), nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.Insert(tx, tt.entry)

			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			case *pgconn.PgError:
				var pgErr *pgconn.PgError
				if !errors.As(err, &pgErr) {
					t.Fatalf("expected pg error, got %v", err)
				}
			default:
				if !errors.Is(err, want) {
					t.Fatalf("expected %v, got %v", want, err)
				}
			}
		})
	}
}

func TestTransactions_ListByMatch(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx := context.Background()
	matchID := uuid.New()
	other := uuid.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	entries := []transactions.Entry{
		{TransactionID: "t1", MatchID: uuid.NullUUID{UUID: matchID, Valid: true}, Source: "escrow", Kind: transactions.KindStake, From: "alice", To: "vault:1", Amount: 500},
		{TransactionID: "t2", MatchID: uuid.NullUUID{UUID: other, Valid: true}, Source: "escrow", Kind: transactions.KindStake, From: "carol", To: "vault:2", Amount: 7},
		{TransactionID: "t3", MatchID: uuid.NullUUID{UUID: matchID, Valid: true}, Source: "escrow", Kind: transactions.KindStake, From: "bob", To: "vault:1", Amount: 500},
		{TransactionID: "t4", MatchID: uuid.NullUUID{UUID: matchID, Valid: true}, Source: "escrow", Kind: transactions.KindRefund, From: "vault:1", To: "alice", Amount: 500},
	}

	for _, e := range entries {
		err = repo.Insert(tx, e)
		if err != nil {
			t.Fatalf("insert %s: %v", e.TransactionID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.ListByMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	wantIDs := []string{"t1", "t3", "t4"}
	if len(got) != len(wantIDs) {
		t.Fatalf("want %d entries, got %d", len(wantIDs), len(got))
	}

	for i, id := range wantIDs {
		if got[i].TransactionID != id {
			t.Fatalf("entry %d: want %s, got %s", i, id, got[i].TransactionID)
		}
	}

	if got[2].Kind != transactions.KindRefund || got[2].From != "vault:1" || got[2].Amount != 500 {
		t.Fatalf("unexpected refund entry: %+v", got[2])
	}

	none, err := repo.ListByMatch(ctx, uuid.New())
	if err != nil {
		t.Fatalf("list unknown: %v", err)
	}

	if len(none) != 0 {
		t.Fatalf("expected no entries, got %d", len(none))
	}
}
