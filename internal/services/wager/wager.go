package wager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/metrics"
	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
	pgaccounts "github.com/fastprodman/pvpescrow/internal/repos/accounts/postgres"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
	pgmatches "github.com/fastprodman/pvpescrow/internal/repos/matches/postgres"
	"github.com/fastprodman/pvpescrow/internal/repos/settings"
	pgsettings "github.com/fastprodman/pvpescrow/internal/repos/settings/postgres"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/pvpescrow/internal/repos/transactions/postgres"
	"github.com/google/uuid"
)

// JournalSource tags journal entries written by match operations.
const JournalSource = "escrow"

// WagerService runs every match operation in one database transaction:
// the match row is locked, the pure transition computes a transfer plan,
// and the plan, the new match state and the journal commit together.
type WagerService struct {
	db       *sql.DB
	accounts accounts.Accounts
	matches  matches.Matches
	settings settings.Settings
	txns     transactions.Transactions

	now     func() int64
	newID   func() uuid.UUID
	reserve uint64
	metrics *metrics.Escrow
}

type Option func(*WagerService)

// WithClock replaces the unix-seconds time source.
func WithClock(now func() int64) Option {
	return func(s *WagerService) { s.now = now }
}

// WithVaultReserve sets the reserve recorded at InitializeConfig.
func WithVaultReserve(reserve uint64) Option {
	return func(s *WagerService) { s.reserve = reserve }
}

func WithMetrics(m *metrics.Escrow) Option {
	return func(s *WagerService) { s.metrics = m }
}

// WithIDGenerator replaces the generator of match and journal ids.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *WagerService) { s.newID = gen }
}

func New(dbx *sql.DB, opts ...Option) *WagerService {
	s := &WagerService{
		db:       dbx,
		accounts: pgaccounts.New(dbx),
		matches:  pgmatches.New(dbx),
		settings: pgsettings.New(dbx),
		txns:     pgtransactions.New(dbx),
		now:      func() int64 { return time.Now().Unix() },
		newID:    uuid.New,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// InitializeConfig writes the deployment singleton. The caller becomes the
// recorded admin.
func (s *WagerService) InitializeConfig(ctx context.Context, caller, serverAuthority, feeVault escrow.Identity) (*escrow.Config, error) {
	start := time.Now()

	cfg, err := escrow.NewConfig(caller, serverAuthority, feeVault, s.reserve, s.now())
	if err == nil {
		err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			ierr := s.settings.Insert(tx, *cfg)
			if errors.Is(ierr, settings.ErrAlreadyExists) {
				return fmt.Errorf("%w: %w", escrow.ErrConfigExists, ierr)
			}

			return ierr
		})
	}

	s.metrics.ObserveOperation("initialize_config", escrow.Reason(err), time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("initialize config: %w", err)
	}

	slog.Info("escrow config initialized",
		"admin", cfg.Admin, "server_authority", cfg.ServerAuthority,
		"fee_vault", cfg.FeeVault, "fee_bps", cfg.FeeBps, "vault_reserve", cfg.VaultReserve)

	return cfg, nil
}

func (s *WagerService) GetConfig(ctx context.Context) (*escrow.Config, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", mapSettingsErr(err))
	}

	return &cfg, nil
}

func (s *WagerService) loadConfig(tx *sql.Tx) (*escrow.Config, error) {
	cfg, err := s.settings.GetTx(tx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", mapSettingsErr(err))
	}

	return &cfg, nil
}

func mapSettingsErr(err error) error {
	if errors.Is(err, settings.ErrNotInitialized) {
		return fmt.Errorf("%w: %w", escrow.ErrConfigNotInitialized, err)
	}

	return err
}

// lockMatch loads a live match under a row lock. A match that already
// closed reports InvalidState; an unknown id reports MatchNotFound.
func (s *WagerService) lockMatch(tx *sql.Tx, id uuid.UUID) (escrow.Match, error) {
	m, err := s.matches.LockAndGet(tx, id)
	if err == nil {
		return m, nil
	}

	if !errors.Is(err, matches.ErrMatchNotFound) {
		return escrow.Match{}, fmt.Errorf("lock match: %w", err)
	}

	_, herr := s.matches.GetTx(tx, id)
	switch {
	case herr == nil:
		return escrow.Match{}, fmt.Errorf("match %s already closed: %w", id, escrow.ErrInvalidState)
	case errors.Is(herr, matches.ErrMatchNotFound):
		return escrow.Match{}, fmt.Errorf("match %s: %w", id, escrow.ErrMatchNotFound)
	default:
		return escrow.Match{}, fmt.Errorf("look up match %s: %w", id, herr)
	}
}

func (s *WagerService) lockVault(tx *sql.Tx, vault escrow.Identity) (uint64, error) {
	balance, err := s.accounts.LockAndGetBalance(tx, vault.String())
	if err != nil {
		return 0, fmt.Errorf("lock vault: %w", err)
	}

	return uint64(balance), nil
}

// apply executes a transfer plan: lock and debit the source, credit the
// destination and journal the movement.
func (s *WagerService) apply(tx *sql.Tx, matchID uuid.UUID, plan []escrow.Transfer) error {
	for _, tr := range plan {
		amount, err := toMinor(tr.Amount)
		if err != nil {
			return err
		}

		balance, err := s.accounts.LockAndGetBalance(tx, tr.From.String())
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				return fmt.Errorf("debit %s: %w: %w", tr.From, escrow.ErrInsufficientFunds, err)
			}

			return fmt.Errorf("lock %s: %w", tr.From, err)
		}

		if balance < amount {
			return fmt.Errorf("debit %d from %s holding %d: %w", amount, tr.From, balance, escrow.ErrInsufficientFunds)
		}

		err = s.accounts.DecreaseBalance(tx, tr.From.String(), amount)
		if err != nil {
			if errors.Is(err, accounts.ErrInsufficientFunds) {
				return fmt.Errorf("debit %s: %w: %w", tr.From, escrow.ErrInsufficientFunds, err)
			}

			return fmt.Errorf("debit %s: %w", tr.From, err)
		}

		err = s.accounts.IncreaseBalance(tx, tr.To.String(), amount)
		if err != nil {
			if errors.Is(err, accounts.ErrBalanceOverflow) {
				return fmt.Errorf("credit %s: %w: %w", tr.To, escrow.ErrMathOverflow, err)
			}

			return fmt.Errorf("credit %s: %w", tr.To, err)
		}

		err = s.txns.Insert(tx, transactions.Entry{
			TransactionID: s.newID().String(),
			MatchID:       uuid.NullUUID{UUID: matchID, Valid: true},
			Source:        JournalSource,
			Kind:          transactions.Kind(tr.Kind),
			From:          tr.From.String(),
			To:            tr.To.String(),
			Amount:        amount,
		})
		if err != nil {
			return fmt.Errorf("journal %s transfer: %w", tr.Kind, err)
		}
	}

	return nil
}

func (s *WagerService) record(plan []escrow.Transfer) {
	for _, tr := range plan {
		s.metrics.AddVolume(string(tr.Kind), tr.Amount)
	}
}

// toMinor converts a domain amount to the BIGINT column type.
func toMinor(amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d: %w", amount, escrow.ErrMathOverflow)
	}

	return int64(amount), nil
}
