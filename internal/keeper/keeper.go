// Package keeper triggers the permissionless timeout refund for active
// matches whose settlement deadline has passed, so stakes are never
// stranded when the server authority stops reporting results.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/metrics"
	"github.com/google/uuid"
)

const (
	defaultInterval  = 30 * time.Second
	defaultBatchSize = 50
)

type Refunder interface {
	ListExpired(ctx context.Context, limit int) ([]uuid.UUID, error)
	TimeoutRefund(ctx context.Context, caller escrow.Identity, matchID uuid.UUID) (*escrow.Outcome, error)
}

type Keeper struct {
	svc       Refunder
	caller    escrow.Identity
	interval  time.Duration
	batchSize int
	metrics   *metrics.Escrow
}

func New(svc Refunder, caller escrow.Identity, interval time.Duration, batchSize int, m *metrics.Escrow) *Keeper {
	if interval <= 0 {
		interval = defaultInterval
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Keeper{
		svc:       svc,
		caller:    caller,
		interval:  interval,
		batchSize: batchSize,
		metrics:   m,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (k *Keeper) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		n, err := k.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Error("keeper sweep failed", "error", err)
		} else if n > 0 {
			slog.Info("keeper refunded expired matches", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep refunds one batch of expired matches and returns how many were
// refunded. A match that another caller closed first is skipped.
func (k *Keeper) Sweep(ctx context.Context) (int, error) {
	ids, err := k.svc.ListExpired(ctx, k.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	var (
		refunded int
		errs     []error
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		_, err = k.svc.TimeoutRefund(ctx, k.caller, id)
		k.metrics.ObserveKeeperRefund(escrow.Reason(err))

		switch {
		case err == nil:
			refunded++
		case errors.Is(err, escrow.ErrInvalidState):
			slog.Debug("keeper skipped closed match", "match_id", id)
		default:
			errs = append(errs, fmt.Errorf("refund %s: %w", id, err))
		}
	}

	return refunded, errors.Join(errs...)
}
