package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/accounts"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	"github.com/fastprodman/pvpescrow/internal/services/wallet"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// statusFor maps a service error onto an HTTP status. The order matters:
// a closed match wraps both InvalidState and MatchNotFound.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoCaller):
		return http.StatusUnauthorized
	case errors.Is(err, escrow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrJoinExpired),
		errors.Is(err, escrow.ErrJoinNotExpired),
		errors.Is(err, escrow.ErrSettlementDeadlineNotReached),
		errors.Is(err, escrow.ErrConfigExists),
		errors.Is(err, transactions.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrMatchNotFound),
		errors.Is(err, accounts.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrInvalidStake),
		errors.Is(err, escrow.ErrInvalidWinner),
		errors.Is(err, escrow.ErrInvalidPlayerB),
		errors.Is(err, escrow.ErrInvalidWindow),
		errors.Is(err, escrow.ErrInvalidIdentity),
		wallet.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrMathOverflow),
		errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, accounts.ErrInsufficientFunds),
		errors.Is(err, accounts.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, escrow.ErrConfigNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, errNoCaller):
		return "unauthenticated"
	case errors.Is(err, transactions.ErrDuplicateTransaction):
		return "duplicate_transaction"
	case errors.Is(err, accounts.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, accounts.ErrBalanceOverflow):
		return "math_overflow"
	case wallet.IsClientError(err):
		return "invalid_request"
	default:
		return escrow.Reason(err)
	}
}

// writeServiceError hides internal detail from 5xx responses and logs it
// instead.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	resp := errorResponse{Error: err.Error(), Reason: reasonFor(err)}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = http.StatusText(status)
	}

	writeJSON(w, status, resp)
}
