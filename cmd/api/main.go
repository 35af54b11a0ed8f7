package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fastprodman/pvpescrow/internal/api"
	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/infra/logging"
	"github.com/fastprodman/pvpescrow/internal/infra/metrics"
	"github.com/fastprodman/pvpescrow/internal/infra/pgutils"
	"github.com/fastprodman/pvpescrow/internal/keeper"
	"github.com/fastprodman/pvpescrow/internal/services/wager"
	"github.com/fastprodman/pvpescrow/internal/services/wallet"
	"github.com/fastprodman/pvpescrow/pkg/envconf"
	"github.com/fastprodman/pvpescrow/pkg/shutdownqueue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	keeperCaller, err := escrow.ParseIdentity(cfg.Keeper.Caller)
	if err != nil {
		return fmt.Errorf("init config: KEEPER_CALLER: %w", err)
	}

	logCloser := logging.SetupJSON(cfg.LogLevel, cfg.Log)

	queue := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := queue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	queue.Add("log file", func(context.Context) error {
		return logCloser.Close()
	})

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	queue.Add("postgres", func(context.Context) error {
		return dbConns.Close()
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	escrowMetrics := metrics.New(reg)

	wagerSrv := wager.New(dbConns,
		wager.WithVaultReserve(cfg.Escrow.VaultReserve),
		wager.WithMetrics(escrowMetrics),
	)
	walletSrv := wallet.New(dbConns)

	// --- Keeper ---
	if cfg.Keeper.Enabled {
		keeperCtx, cancelKeeper := context.WithCancel(ctx)
		k := keeper.New(wagerSrv, keeperCaller, cfg.Keeper.Interval, cfg.Keeper.BatchSize, escrowMetrics)

		var wg sync.WaitGroup
		wg.Add(1)

		go func() {
			defer wg.Done()
			k.Run(keeperCtx)
		}()

		queue.Add("keeper", func(context.Context) error {
			slog.Info("Stop keeper")
			cancelKeeper()
			wg.Wait()

			return nil
		})
	}

	// --- HTTP server ---
	handler := api.NewRouter(api.RouterDeps{
		Wager:    wagerSrv,
		Wallet:   walletSrv,
		Auth:     api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Leeway),
		Limiter:  api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, escrowMetrics),
		Metrics:  escrowMetrics,
		Gatherer: reg,
	})
	srv := api.NewServer(cfg.HTTP, handler)

	// Register HTTP server graceful shutdown
	queue.Add("http server", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.HTTP.Port, "keeper", cfg.Keeper.Enabled)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred queue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
