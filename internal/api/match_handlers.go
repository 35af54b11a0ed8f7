package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/fastprodman/pvpescrow/internal/repos/matches"
	"github.com/fastprodman/pvpescrow/internal/repos/transactions"
	"github.com/google/uuid"
)

type configRequest struct {
	ServerAuthority string `json:"serverAuthority"`
	FeeVault        string `json:"feeVault"`
}

type configResponse struct {
	Admin           escrow.Identity `json:"admin"`
	ServerAuthority escrow.Identity `json:"serverAuthority"`
	FeeBps          uint64          `json:"feeBps"`
	FeeVault        escrow.Identity `json:"feeVault"`
	VaultReserve    string          `json:"vaultReserve"`
	CreatedAt       int64           `json:"createdAt"`
}

func newConfigResponse(cfg *escrow.Config) configResponse {
	return configResponse{
		Admin:           cfg.Admin,
		ServerAuthority: cfg.ServerAuthority,
		FeeBps:          cfg.FeeBps,
		FeeVault:        cfg.FeeVault,
		VaultReserve:    formatMinor(cfg.VaultReserve),
		CreatedAt:       cfg.CreatedAt,
	}
}

type createMatchRequest struct {
	Stake          string `json:"stake"`
	JoinExpirySecs int64  `json:"joinExpirySecs"`
}

type joinMatchRequest struct {
	SettleWindowSecs int64 `json:"settleWindowSecs"`
}

type settleRequest struct {
	Winner string `json:"winner"`
}

type cancelRequest struct {
	PlayerB string `json:"playerB"`
}

type matchResponse struct {
	MatchID          uuid.UUID       `json:"matchId"`
	PlayerA          escrow.Identity `json:"playerA"`
	PlayerB          escrow.Identity `json:"playerB,omitempty"`
	Stake            string          `json:"stake"`
	State            escrow.State    `json:"state"`
	CreatedAt        int64           `json:"createdAt"`
	JoinExpiryTS     int64           `json:"joinExpiryTs"`
	SettleDeadlineTS int64           `json:"settleDeadlineTs,omitempty"`
	Vault            escrow.Identity `json:"vault"`
	Reserve          string          `json:"reserve"`
	Winner           escrow.Identity `json:"winner,omitempty"`
	Fee              string          `json:"fee,omitempty"`
	Payout           string          `json:"payout,omitempty"`
	ClosedAt         int64           `json:"closedAt,omitempty"`
}

func newMatchResponse(m escrow.Match) matchResponse {
	return matchResponse{
		MatchID:          m.ID,
		PlayerA:          m.PlayerA,
		PlayerB:          m.PlayerB,
		Stake:            formatMinor(m.Stake),
		State:            m.State,
		CreatedAt:        m.CreatedAt,
		JoinExpiryTS:     m.JoinExpiryTS,
		SettleDeadlineTS: m.SettleDeadlineTS,
		Vault:            m.Vault,
		Reserve:          formatMinor(m.Reserve),
	}
}

func newRecordResponse(rec matches.Record) matchResponse {
	resp := newMatchResponse(rec.Match)
	if rec.Closed() {
		resp.ClosedAt = rec.ClosedAt
	}

	if rec.Match.State == escrow.StateSettled {
		resp.Winner = rec.Winner
		resp.Fee = formatMinor(rec.Fee)
		resp.Payout = formatMinor(rec.Payout)
	}

	return resp
}

func newOutcomeResponse(out *escrow.Outcome) matchResponse {
	return newRecordResponse(matches.Record{
		Match:    out.Match,
		Winner:   out.Winner,
		Fee:      out.Fee,
		Payout:   out.Payout,
		ClosedAt: out.ClosedAt,
	})
}

type transferResponse struct {
	TransactionID string            `json:"transactionId"`
	Kind          transactions.Kind `json:"kind"`
	From          string            `json:"from,omitempty"`
	To            string            `json:"to,omitempty"`
	Amount        string            `json:"amount"`
	CreatedAt     string            `json:"createdAt"`
}

// readBody decodes a request body and writes the 400 itself on failure.
func readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeBody(w, r, dst)
	if err == nil {
		return true
	}

	if errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "empty body")
	} else {
		writeError(w, http.StatusBadRequest, "invalid JSON")
	}

	return false
}

// InitializeConfigHandler handles POST /config. The caller becomes admin.
func (h *HandlerProvider) InitializeConfigHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req configRequest
	if !readBody(w, r, &req) {
		return
	}

	authority, err := parseIdentityField("serverAuthority", req.ServerAuthority)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	feeVault, err := parseIdentityField("feeVault", req.FeeVault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cfg, err := h.wager.InitializeConfig(r.Context(), caller, authority, feeVault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newConfigResponse(cfg))
}

// GetConfigHandler handles GET /config
func (h *HandlerProvider) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.wager.GetConfig(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newConfigResponse(cfg))
}

// CreateMatchHandler handles POST /matches. The caller is player A.
func (h *HandlerProvider) CreateMatchHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req createMatchRequest
	if !readBody(w, r, &req) {
		return
	}

	// A non-positive stake is left to the service so it is reported as
	// invalid_stake.
	stake, err := parseAmountCents(req.Stake)
	if err != nil && !errors.Is(err, errZeroAmount) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.wager.CreateMatch(r.Context(), caller, uint64(stake), req.JoinExpirySecs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newMatchResponse(*m))
}

// JoinMatchHandler handles POST /matches/{matchId}/join. The caller is player B.
func (h *HandlerProvider) JoinMatchHandler(w http.ResponseWriter, r *http.Request) {
	caller, matchID, ok := h.callerAndMatch(w, r)
	if !ok {
		return
	}

	var req joinMatchRequest
	if !readBody(w, r, &req) {
		return
	}

	m, err := h.wager.JoinMatch(r.Context(), caller, matchID, req.SettleWindowSecs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newMatchResponse(*m))
}

// SettleHandler handles POST /matches/{matchId}/settle
func (h *HandlerProvider) SettleHandler(w http.ResponseWriter, r *http.Request) {
	caller, matchID, ok := h.callerAndMatch(w, r)
	if !ok {
		return
	}

	var req settleRequest
	if !readBody(w, r, &req) {
		return
	}

	winner, err := parseIdentityField("winner", req.Winner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid winner")
		return
	}

	out, err := h.wager.Settle(r.Context(), caller, matchID, winner)
	h.writeOutcome(w, r, out, err)
}

// CancelUnjoinedHandler handles POST /matches/{matchId}/cancel-unjoined
func (h *HandlerProvider) CancelUnjoinedHandler(w http.ResponseWriter, r *http.Request) {
	caller, matchID, ok := h.callerAndMatch(w, r)
	if !ok {
		return
	}

	out, err := h.wager.CancelUnjoined(r.Context(), caller, matchID)
	h.writeOutcome(w, r, out, err)
}

// CancelActiveHandler handles POST /matches/{matchId}/cancel. playerB may
// be omitted for a match nobody joined.
func (h *HandlerProvider) CancelActiveHandler(w http.ResponseWriter, r *http.Request) {
	caller, matchID, ok := h.callerAndMatch(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	err := decodeBody(w, r, &req)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var playerB escrow.Identity
	if req.PlayerB != "" {
		playerB, err = parseIdentityField("playerB", req.PlayerB)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid playerB")
			return
		}
	}

	out, err := h.wager.CancelActiveMatch(r.Context(), caller, matchID, playerB)
	h.writeOutcome(w, r, out, err)
}

// TimeoutRefundHandler handles POST /matches/{matchId}/timeout-refund
func (h *HandlerProvider) TimeoutRefundHandler(w http.ResponseWriter, r *http.Request) {
	caller, matchID, ok := h.callerAndMatch(w, r)
	if !ok {
		return
	}

	out, err := h.wager.TimeoutRefund(r.Context(), caller, matchID)
	h.writeOutcome(w, r, out, err)
}

// GetMatchHandler handles GET /matches/{matchId}
func (h *HandlerProvider) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := parseMatchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid matchId in path")
		return
	}

	rec, err := h.wager.GetMatch(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRecordResponse(rec))
}

// ListTransfersHandler handles GET /matches/{matchId}/transfers
func (h *HandlerProvider) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := parseMatchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid matchId in path")
		return
	}

	entries, err := h.wager.ListTransfers(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]transferResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, transferResponse{
			TransactionID: e.TransactionID,
			Kind:          e.Kind,
			From:          e.From,
			To:            e.To,
			Amount:        formatMinor(uint64(e.Amount)),
			CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"matchId": matchID, "transfers": resp})
}

func (h *HandlerProvider) callerAndMatch(w http.ResponseWriter, r *http.Request) (escrow.Identity, uuid.UUID, bool) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return "", uuid.Nil, false
	}

	matchID, err := parseMatchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid matchId in path")
		return "", uuid.Nil, false
	}

	return caller, matchID, true
}

func (h *HandlerProvider) writeOutcome(w http.ResponseWriter, r *http.Request, out *escrow.Outcome, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOutcomeResponse(out))
}
