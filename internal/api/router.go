package api

import (
	"net/http"

	"github.com/fastprodman/pvpescrow/internal/infra/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps collects what NewRouter wires together. Limiter, Metrics and
// Gatherer are optional.
type RouterDeps struct {
	Wager    Wager
	Wallet   Wallet
	Auth     *Authenticator
	Limiter  *RateLimiter
	Metrics  *metrics.Escrow
	Gatherer prometheus.Gatherer
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(deps RouterDeps) http.Handler {
	h := NewHandler(deps.Wager, deps.Wallet)
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(observe(deps.Metrics))
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware)
		}
		r.Use(deps.Auth.Middleware)

		r.Get("/accounts/{accountId}/balance", h.GetBalanceHandler)
		r.Post("/accounts/{accountId}/transaction", h.ProcessTransactionHandler)

		r.Get("/config", h.GetConfigHandler)
		r.Post("/config", h.InitializeConfigHandler)

		r.Post("/matches", h.CreateMatchHandler)
		r.Route("/matches/{matchId}", func(r chi.Router) {
			r.Get("/", h.GetMatchHandler)
			r.Get("/transfers", h.ListTransfersHandler)
			r.Post("/join", h.JoinMatchHandler)
			r.Post("/settle", h.SettleHandler)
			r.Post("/cancel-unjoined", h.CancelUnjoinedHandler)
			r.Post("/cancel", h.CancelActiveHandler)
			r.Post("/timeout-refund", h.TimeoutRefundHandler)
		})
	})

	return r
}
