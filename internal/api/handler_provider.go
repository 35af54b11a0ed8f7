package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	"github.com/fastprodman/pvpescrow/internal/services/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Wager is the match lifecycle as the HTTP layer sees it.
type Wager interface {
	InitializeConfig(ctx context.Context, caller, serverAuthority, feeVault escrow.Identity) (*escrow.Config, error)
	GetConfig(ctx context.Context) (*escrow.Config, error)
	CreateMatch(ctx context.Context, caller escrow.Identity, stake uint64, joinExpirySecs int64) (*escrow.Match, error)
	JoinMatch(ctx context.Context, caller escrow.Identity, matchID uuid.UUID, settleWindowSecs int64) (*escrow.Match, error)
	Settle(ctx context.Context, caller escrow.Identity, matchID uuid.UUID, winner escrow.Identity) (*escrow.Outcome, error)
	CancelUnjoined(ctx context.Context, caller escrow.Identity, matchID uuid.UUID) (*escrow.Outcome, error)
	CancelActiveMatch(ctx context.Context, caller escrow.Identity, matchID uuid.UUID, playerB escrow.Identity) (*escrow.Outcome, error)
	TimeoutRefund(ctx context.Context, caller escrow.Identity, matchID uuid.UUID) (*escrow.Outcome, error)
	GetMatch(ctx context.Context, matchID uuid.UUID) (matches.Record, error)
	ListTransfers(ctx context.Context, matchID uuid.UUID) ([]transactions.Entry, error)
}

// Wallet funds and drains player balances.
type Wallet interface {
	ProcessTransaction(ctx context.Context, transaction wallet.Transaction) error
	GetBalance(ctx context.Context, accountID escrow.Identity) (int64, error)
}

// HandlerProvider wraps the escrow and wallet services and exposes HTTP handlers.
type HandlerProvider struct {
	wager  Wager
	wallet Wallet
}

// NewHandler returns a new Handler provider.
func NewHandler(wager Wager, wallet Wallet) *HandlerProvider {
	return &HandlerProvider{wager: wager, wallet: wallet}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON request body, capped at 1MB, rejecting unknown
// fields. An empty body is reported as errEmptyBody.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}

		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

var errEmptyBody = errors.New("empty body")

// parseAccountIDFromPath reads `{accountId}` from chi routes like:
//
//	GET  /accounts/{accountId}/balance
//	POST /accounts/{accountId}/transaction
func parseAccountIDFromPath(r *http.Request) (escrow.Identity, error) {
	id, err := escrow.ParseIdentity(chi.URLParam(r, "accountId"))
	if err != nil {
		return "", fmt.Errorf("invalid accountId: %w", err)
	}

	return id, nil
}

func parseMatchIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "matchId")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing matchId")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid matchId: %w", err)
	}

	return id, nil
}

func parseSourceType(h http.Header) (wallet.SourceType, error) {
	raw := strings.ToLower(strings.TrimSpace(h.Get("Source-Type")))
	switch raw {
	case "game":
		return wallet.SourceGame, nil
	case "server":
		return wallet.SourceServer, nil
	case "payment":
		return wallet.SourcePayment, nil
	default:
		return "", fmt.Errorf("invalid Source-Type")
	}
}

// errZeroAmount is returned for a well-formed amount that equals zero.
var errZeroAmount = errors.New("amount must be > 0")

// parseAmountCents converts a decimal string with up to 2 fractional digits into cents.
func parseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount required")
	}
	if s[0] == '+' {
		s = s[1:]
	}
	if s != "" && s[0] == '-' {
		return 0, errZeroAmount
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if !isDigits(intPart) {
		return 0, fmt.Errorf("invalid amount integer")
	}
	if hasFrac {
		if len(frac) > 2 {
			return 0, fmt.Errorf("amount supports up to 2 decimals")
		}
		if !isDigits(frac) {
			return 0, fmt.Errorf("invalid amount fractional")
		}
	}
	frac += strings.Repeat("0", 2-len(frac))
	ip, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount integer")
	}
	fp, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount fractional")
	}
	if ip > (math.MaxInt64-fp)/100 {
		return 0, fmt.Errorf("amount too large")
	}
	total := ip*100 + fp
	if total == 0 {
		return 0, errZeroAmount
	}
	return total, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// formatMinor renders cents as a decimal string with 2 fractional digits.
func formatMinor(v uint64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

func parseIdentityField(name, raw string) (escrow.Identity, error) {
	id, err := escrow.ParseIdentity(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	return id, nil
}
