package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/settings"
)

var _ settings.Settings = (*settingsRepo)(nil)

type settingsRepo struct{ db *sql.DB }

func New(db *sql.DB) *settingsRepo {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Insert(tx *sql.Tx, cfg escrow.Config) error {
	_, err := tx.Exec(`
		INSERT INTO escrow_config (id, admin, server_authority, fee_bps, fee_vault, vault_reserve, created_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
	`, cfg.Admin.String(), cfg.ServerAuthority.String(), int64(cfg.FeeBps), cfg.FeeVault.String(),
		int64(cfg.VaultReserve), cfg.CreatedAt)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return settings.ErrAlreadyExists
		}

		return fmt.Errorf("insert config: %w", err)
	}

	return nil
}

func (r *settingsRepo) Get(ctx context.Context) (escrow.Config, error) {
	return scanConfig(r.db.QueryRowContext(ctx, `
		SELECT admin, server_authority, fee_bps, fee_vault, vault_reserve, created_at
		FROM escrow_config
		WHERE id = 1
	`))
}

func (r *settingsRepo) GetTx(tx *sql.Tx) (escrow.Config, error) {
	return scanConfig(tx.QueryRow(`
		SELECT admin, server_authority, fee_bps, fee_vault, vault_reserve, created_at
		FROM escrow_config
		WHERE id = 1
		FOR SHARE
	`))
}

func scanConfig(row *sql.Row) (escrow.Config, error) {
	var (
		cfg                       escrow.Config
		admin, authority, feeDest string
		feeBps, reserve           int64
	)

	err := row.Scan(&admin, &authority, &feeBps, &feeDest, &reserve, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return escrow.Config{}, settings.ErrNotInitialized
		}

		return escrow.Config{}, fmt.Errorf("get config: %w", err)
	}

	cfg.Admin = escrow.Identity(admin)
	cfg.ServerAuthority = escrow.Identity(authority)
	cfg.FeeBps = uint64(feeBps)
	cfg.FeeVault = escrow.Identity(feeDest)
	cfg.VaultReserve = uint64(reserve)

	return cfg, nil
}
