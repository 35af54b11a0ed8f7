package wager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	"github.com/google/uuid"
)

// CreateMatch opens a match for caller and moves the stake (and the
// configured reserve) from the caller's balance into a fresh vault.
func (s *WagerService) CreateMatch(ctx context.Context, caller escrow.Identity, stake uint64, joinExpirySecs int64) (*escrow.Match, error) {
	const op = "create_match"

	start := time.Now()

	var (
		m    *escrow.Match
		plan []escrow.Transfer
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := toMinor(stake)
		if err != nil {
			return err
		}

		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}

		created, deposits, err := escrow.NewMatch(cfg, s.newID(), caller, stake, joinExpirySecs, s.now())
		if err != nil {
			return err
		}

		err = s.matches.Insert(tx, *created)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		err = s.accounts.Open(tx, created.Vault.String())
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}

		err = s.apply(tx, created.ID, deposits)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}

		m = created
		plan = deposits

		return nil
	})

	s.metrics.ObserveOperation(op, escrow.Reason(err), time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	s.record(plan)

	slog.Info("match created",
		"match_id", m.ID, "player_a", m.PlayerA, "stake", m.Stake,
		"reserve", m.Reserve, "join_expiry_ts", m.JoinExpiryTS, "vault", m.Vault)

	return m, nil
}

// JoinMatch commits caller as player B.
func (s *WagerService) JoinMatch(ctx context.Context, caller escrow.Identity, matchID uuid.UUID, settleWindowSecs int64) (*escrow.Match, error) {
	const op = "join_match"

	start := time.Now()

	var (
		m    escrow.Match
		plan []escrow.Transfer
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error

		m, err = s.lockMatch(tx, matchID)
		if err != nil {
			return err
		}

		balance, err := s.lockVault(tx, m.Vault)
		if err != nil {
			return err
		}

		plan, err = m.Join(caller, settleWindowSecs, s.now(), balance)
		if err != nil {
			return err
		}

		err = s.apply(tx, m.ID, plan)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}

		err = s.matches.Update(tx, m)
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}

		return nil
	})

	s.metrics.ObserveOperation(op, escrow.Reason(err), time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("join match: %w", err)
	}

	s.record(plan)

	slog.Info("match joined",
		"match_id", m.ID, "player_b", m.PlayerB, "settle_deadline_ts", m.SettleDeadlineTS)

	return &m, nil
}

// Settle pays the declared winner. Only the server authority may call it.
func (s *WagerService) Settle(ctx context.Context, caller escrow.Identity, matchID uuid.UUID, winner escrow.Identity) (*escrow.Outcome, error) {
	return s.close(ctx, "settle", caller, matchID, func(cfg *escrow.Config, m *escrow.Match, balance uint64, now int64) (*escrow.Outcome, error) {
		return m.Settle(cfg, caller, winner, balance, now)
	})
}

// CancelUnjoined returns player A's deposit after the join window passed.
func (s *WagerService) CancelUnjoined(ctx context.Context, caller escrow.Identity, matchID uuid.UUID) (*escrow.Outcome, error) {
	return s.close(ctx, "cancel_unjoined", caller, matchID, func(_ *escrow.Config, m *escrow.Match, balance uint64, now int64) (*escrow.Outcome, error) {
		return m.CancelUnjoined(caller, balance, now)
	})
}

// CancelActiveMatch is the server authority's abort. playerB must name the
// stored opponent of an active match and may be empty for an unjoined one.
func (s *WagerService) CancelActiveMatch(ctx context.Context, caller escrow.Identity, matchID uuid.UUID, playerB escrow.Identity) (*escrow.Outcome, error) {
	return s.close(ctx, "cancel_active", caller, matchID, func(cfg *escrow.Config, m *escrow.Match, balance uint64, now int64) (*escrow.Outcome, error) {
		return m.CancelActive(cfg, caller, playerB, balance, now)
	})
}

// TimeoutRefund unwinds an active match past its settlement deadline.
// Any caller may trigger it.
func (s *WagerService) TimeoutRefund(ctx context.Context, caller escrow.Identity, matchID uuid.UUID) (*escrow.Outcome, error) {
	return s.close(ctx, "timeout_refund", caller, matchID, func(_ *escrow.Config, m *escrow.Match, balance uint64, now int64) (*escrow.Outcome, error) {
		return m.TimeoutRefund(balance, now)
	})
}

type closer func(cfg *escrow.Config, m *escrow.Match, vaultBalance uint64, now int64) (*escrow.Outcome, error)

// close runs a terminal transition: it drains the vault by the returned
// plan, deletes the vault account and moves the match into history.
func (s *WagerService) close(ctx context.Context, op string, caller escrow.Identity, matchID uuid.UUID, transition closer) (*escrow.Outcome, error) {
	start := time.Now()

	var out *escrow.Outcome

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}

		m, err := s.lockMatch(tx, matchID)
		if err != nil {
			return err
		}

		balance, err := s.lockVault(tx, m.Vault)
		if err != nil {
			return err
		}

		res, err := transition(cfg, &m, balance, s.now())
		if err != nil {
			return err
		}

		err = s.apply(tx, m.ID, res.Transfers)
		if err != nil {
			return fmt.Errorf("pay out: %w", err)
		}

		err = s.accounts.Close(tx, m.Vault.String())
		if err != nil {
			return fmt.Errorf("close vault: %w", err)
		}

		err = s.matches.Archive(tx, *res)
		if err != nil {
			return fmt.Errorf("archive match: %w", err)
		}

		out = res

		return nil
	})

	s.metrics.ObserveOperation(op, escrow.Reason(err), time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.record(out.Transfers)
	s.metrics.AddFee(out.Fee)

	slog.Info("match closed",
		"operation", op, "caller", caller, "match_id", out.Match.ID, "state", out.Match.State,
		"winner", out.Winner, "fee", out.Fee, "payout", out.Payout, "transfers", len(out.Transfers))

	return out, nil
}

// GetMatch returns a live match or the history record of a closed one.
func (s *WagerService) GetMatch(ctx context.Context, matchID uuid.UUID) (matches.Record, error) {
	rec, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return matches.Record{}, fmt.Errorf("get match: %w", mapMatchErr(err))
	}

	return rec, nil
}

// ListTransfers returns the journal of a match in execution order.
func (s *WagerService) ListTransfers(ctx context.Context, matchID uuid.UUID) ([]transactions.Entry, error) {
	_, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	entries, err := s.txns.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	return entries, nil
}

// ListExpired returns up to limit active matches past their settlement
// deadline.
func (s *WagerService) ListExpired(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ids, err := s.matches.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	return ids, nil
}

func mapMatchErr(err error) error {
	if errors.Is(err, matches.ErrMatchNotFound) {
		return fmt.Errorf("%w: %w", escrow.ErrMatchNotFound, err)
	}

	return err
}
