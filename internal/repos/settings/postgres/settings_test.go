package settings

import (
	"errors"
	"testing"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/pgtestutil"
	"github.com/fastprodman/pvpescrow/internal/repos/settings"
)

func TestSettings_InsertOnce(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	ctx := t.Context()

	_, err := repo.Get(ctx)
	if !errors.Is(err, settings.ErrNotInitialized) {
		t.Fatalf("empty table: want ErrNotInitialized, got %v", err)
	}

	cfg, err := escrow.NewConfig("admin", "server", "treasury", 25, 1_700_000_000)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	err = repo.Insert(tx, *cfg)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetTx(tx)
	if err != nil {
		t.Fatalf("get tx: %v", err)
	}

	if got != *cfg {
		t.Fatalf("config mismatch in tx: want %+v, got %+v", *cfg, got)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err = repo.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.FeeBps != escrow.FeeBps || got.VaultReserve != 25 || got.ServerAuthority != "server" {
		t.Fatalf("unexpected config: %+v", got)
	}

	tx2, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx2: %v", err)
	}
	defer func() { _ = tx2.Rollback() }()

	err = repo.Insert(tx2, *cfg)
	if !errors.Is(err, settings.ErrAlreadyExists) {
		t.Fatalf("second insert: want ErrAlreadyExists, got %v", err)
	}
}
