package accounts

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/fastprodman/pvpescrow/internal/infra/pgtestutil"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
)

func TestAccounts_Exists_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		seed      func(t *testing.T, db *sql.DB)
		accountID string
		wantErr   error
	}{
		{
			name:      "account exists",
			seed:      func(t *testing.T, db *sql.DB) { pgtestutil.SeedAccount(t, db, "alice", 100) },
			accountID: "alice",
			wantErr:   nil,
		},
		{
			name:      "account not found",
			accountID: "nobody",
			wantErr:   accounts.ErrAccountNotFound,
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

			tx, err := db.BeginTx(t.Context(), nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.Exists(tx, tt.accountID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("unexpected error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
