package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fastprodman/pvpescrow/internal/services/wallet"
)

type txRequest struct {
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transactionId"`
}

func parseDirection(s string) (wallet.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return wallet.Deposit, nil
	case "withdraw":
		return wallet.Withdraw, nil
	default:
		return "", wallet.ErrInvalidDirection
	}
}

// GetBalanceHandler handles GET /accounts/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	bal, err := h.wallet.GetBalance(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   formatMinor(uint64(bal)),
	})
}

// ProcessTransactionHandler handles POST /accounts/{accountId}/transaction.
// Withdrawals are only accepted from the account owner.
func (h *HandlerProvider) ProcessTransactionHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	source, err := parseSourceType(r.Header)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid Source-Type header")
		return
	}

	var req txRequest
	err = decodeBody(w, r, &req)
	if err != nil {
		if errors.Is(err, errEmptyBody) {
			writeError(w, http.StatusBadRequest, "empty body")
			return
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	direction, err := parseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid direction")
		return
	}
	amountCents, err := parseAmountCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "transactionId required")
		return
	}

	if direction == wallet.Withdraw && caller != accountID {
		writeError(w, http.StatusForbidden, "only the account owner may withdraw")
		return
	}

	err = h.wallet.ProcessTransaction(r.Context(), wallet.Transaction{
		TransactionID: req.TransactionID,
		AccountID:     accountID,
		Source:        source,
		Direction:     direction,
		AmountMinor:   amountCents,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
