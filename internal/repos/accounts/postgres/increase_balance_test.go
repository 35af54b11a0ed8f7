package accounts

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/fastprodman/pvpescrow/internal/infra/pgtestutil"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
)

func TestAccounts_IncreaseBalance_Basic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		seed        func(t *testing.T, db *sql.DB)
		accountID   string
		amount      int64
		wantBalance int64
	}{
		{
			name:        "increase_from_zero",
			seed:        func(t *testing.T, db *sql.DB) { pgtestutil.SeedAccount(t, db, "alice", 0) },
			accountID:   "alice",
			amount:      250,
			wantBalance: 250,
		},
		{
			name:        "increase_from_positive",
			seed:        func(t *testing.T, db *sql.DB) { pgtestutil.SeedAccount(t, db, "bob", 1_000) },
			accountID:   "bob",
			amount:      500,
			wantBalance: 1_500,
		},
		{
			name:        "first_credit_opens_account",
			accountID:   "treasury",
			amount:      300,
			wantBalance: 300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			if tt.seed != nil {
				tt.seed(t, db)
			}

			repo := New(db)

			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.IncreaseBalance(tx, tt.accountID, tt.amount)
			if err != nil {
				t.Fatalf("increase balance: %v", err)
			}

			err = tx.Commit()
			if err != nil {
				t.Fatalf("commit: %v", err)
			}

			got, err := repo.GetBalance(ctx, tt.accountID)
			if err != nil {
				t.Fatalf("get balance: %v", err)
			}

			if got != tt.wantBalance {
				t.Fatalf("balance mismatch: want %d, got %d", tt.wantBalance, got)
			}
		})
	}
}

func TestAccounts_IncreaseBalance_Overflow(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	pgtestutil.SeedAccount(t, db, "whale", math.MaxInt64-10)

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = repo.IncreaseBalance(tx, "whale", 11)
	if !errors.Is(err, accounts.ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
}

func TestAccounts_IncreaseBalance_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 2)

	worker := func(amount int64) {
		tx, e := db.BeginTx(ctx, nil)
		if e != nil {
			errCh <- e
			return
		}
		defer func() { _ = tx.Rollback() }()

		e = repo.IncreaseBalance(tx, "treasury", amount)
		if e != nil {
			errCh <- e
			return
		}

		errCh <- tx.Commit()
	}

	// both workers race on creating the same row
	go worker(1_000)
	go worker(2_500)

	for range 2 {
		select {
		case e := <-errCh:
			if e != nil {
				t.Fatalf("worker error: %v", e)
			}
		case <-ctx.Done():
			t.Fatalf("timeout waiting for workers")
		}
	}

	got, err := repo.GetBalance(ctx, "treasury")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}

	if got != 3_500 {
		t.Fatalf("final balance mismatch: want 3500, got %d", got)
	}
}
