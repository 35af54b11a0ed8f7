//go:build e2e

package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fastprodman/pvpescrow/internal/api"
	"github.com/fastprodman/pvpescrow/internal/escrow"
)

const (
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second
)

var (
	baseURL    = envOr("E2E_BASE_URL", "http://localhost:8080")
	jwtSecret  = envOr("E2E_JWT_SECRET", "dev-secret")
	jwtIssuer  = envOr("E2E_JWT_ISSUER", "pvpescrow")
	httpClient = &http.Client{Timeout: timeout}
)

const (
	admin     escrow.Identity = "admin"
	authority escrow.Identity = "server"
	feeVault  escrow.Identity = "treasury"
)

func TestE2E_SettleFlow(t *testing.T) {
	waitUntilReady(t)
	reserve := ensureConfig(t)

	a, b := player(t, "a"), player(t, "b")
	fund(t, a, "100.00")
	fund(t, b, "100.00")
	treasuryBefore := balanceCents(t, feeVault)

	var matchID string

	t.Run("create_moves_stake_and_reserve", func(t *testing.T) {
		code, body := call(t, a, http.MethodPost, "/matches", `{"stake":"10.00","joinExpirySecs":300}`)
		if code != http.StatusCreated {
			t.Fatalf("create: want 201, got %d (%s)", code, body)
		}

		matchID = field(t, body, "matchId")
		if got := field(t, body, "state"); got != "waiting_for_b" {
			t.Fatalf("state after create: want waiting_for_b, got %s", got)
		}

		if got, want := balanceCents(t, a), 9000-reserve; got != want {
			t.Fatalf("player a after create: want %d, got %d", want, got)
		}
	})

	t.Run("join_moves_stake", func(t *testing.T) {
		code, body := call(t, b, http.MethodPost, "/matches/"+matchID+"/join", `{"settleWindowSecs":600}`)
		if code != http.StatusOK {
			t.Fatalf("join: want 200, got %d (%s)", code, body)
		}

		if got := balanceCents(t, b); got != 9000 {
			t.Fatalf("player b after join: want 9000, got %d", got)
		}
	})

	t.Run("settle_rejects_non_authority", func(t *testing.T) {
		code, body := call(t, a, http.MethodPost, "/matches/"+matchID+"/settle", `{"winner":"`+a.String()+`"}`)
		if code != http.StatusForbidden {
			t.Fatalf("settle by player: want 403, got %d (%s)", code, body)
		}
	})

	t.Run("settle_pays_fee_and_winner", func(t *testing.T) {
		code, body := call(t, authority, http.MethodPost, "/matches/"+matchID+"/settle", `{"winner":"`+b.String()+`"}`)
		if code != http.StatusOK {
			t.Fatalf("settle: want 200, got %d (%s)", code, body)
		}

		if got := field(t, body, "fee"); got != "3.00" {
			t.Fatalf("fee: want 3.00, got %s", got)
		}

		if got := balanceCents(t, b); got != 10700 {
			t.Fatalf("winner: want 10700, got %d", got)
		}

		if got := balanceCents(t, a); got != 9000 {
			t.Fatalf("loser: want 9000, got %d", got)
		}

		if got := balanceCents(t, feeVault) - treasuryBefore; got != 300 {
			t.Fatalf("fee vault delta: want 300, got %d", got)
		}
	})

	t.Run("second_settle_conflicts", func(t *testing.T) {
		code, body := call(t, authority, http.MethodPost, "/matches/"+matchID+"/settle", `{"winner":"`+b.String()+`"}`)
		if code != http.StatusConflict {
			t.Fatalf("second settle: want 409, got %d (%s)", code, body)
		}
	})

	t.Run("closed_match_is_readable", func(t *testing.T) {
		code, body := call(t, a, http.MethodGet, "/matches/"+matchID, "")
		if code != http.StatusOK {
			t.Fatalf("get: want 200, got %d (%s)", code, body)
		}

		if got := field(t, body, "state"); got != "settled" {
			t.Fatalf("state: want settled, got %s", got)
		}

		code, body = call(t, a, http.MethodGet, "/matches/"+matchID+"/transfers", "")
		if code != http.StatusOK {
			t.Fatalf("transfers: want 200, got %d (%s)", code, body)
		}

		var payload struct {
			Transfers []struct {
				Kind   string `json:"kind"`
				Amount string `json:"amount"`
			} `json:"transfers"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			t.Fatalf("decode transfers: %v", err)
		}

		var kinds []string
		for _, tr := range payload.Transfers {
			if tr.Kind != "reserve" {
				kinds = append(kinds, tr.Kind)
			}
		}

		if got := strings.Join(kinds, ","); got != "stake,stake,fee,payout" {
			t.Fatalf("transfer kinds: want stake,stake,fee,payout, got %s", got)
		}
	})
}

func TestE2E_CancelAndRefund(t *testing.T) {
	waitUntilReady(t)
	ensureConfig(t)

	a, b, c := player(t, "a"), player(t, "b"), player(t, "c")
	fund(t, a, "50.00")
	fund(t, b, "50.00")

	t.Run("cancel_unjoined_after_expiry", func(t *testing.T) {
		code, body := call(t, a, http.MethodPost, "/matches", `{"stake":"5.00","joinExpirySecs":0}`)
		if code != http.StatusCreated {
			t.Fatalf("create: want 201, got %d (%s)", code, body)
		}
		matchID := field(t, body, "matchId")

		time.Sleep(1100 * time.Millisecond)

		code, body = call(t, b, http.MethodPost, "/matches/"+matchID+"/join", `{"settleWindowSecs":60}`)
		if code != http.StatusConflict {
			t.Fatalf("late join: want 409, got %d (%s)", code, body)
		}

		code, body = call(t, b, http.MethodPost, "/matches/"+matchID+"/cancel-unjoined", "")
		if code != http.StatusForbidden {
			t.Fatalf("cancel by stranger: want 403, got %d (%s)", code, body)
		}

		code, body = call(t, a, http.MethodPost, "/matches/"+matchID+"/cancel-unjoined", "")
		if code != http.StatusOK {
			t.Fatalf("cancel: want 200, got %d (%s)", code, body)
		}

		if got := balanceCents(t, a); got != 5000 {
			t.Fatalf("player a after cancel: want 5000, got %d", got)
		}
	})

	t.Run("timeout_refund_by_anyone", func(t *testing.T) {
		code, body := call(t, a, http.MethodPost, "/matches", `{"stake":"5.00","joinExpirySecs":60}`)
		if code != http.StatusCreated {
			t.Fatalf("create: want 201, got %d (%s)", code, body)
		}
		matchID := field(t, body, "matchId")

		code, body = call(t, b, http.MethodPost, "/matches/"+matchID+"/join", `{"settleWindowSecs":0}`)
		if code != http.StatusOK {
			t.Fatalf("join: want 200, got %d (%s)", code, body)
		}

		time.Sleep(1100 * time.Millisecond)

		// The keeper may get there first; either way the match ends refunded.
		code, body = call(t, c, http.MethodPost, "/matches/"+matchID+"/timeout-refund", "")
		if code != http.StatusOK && code != http.StatusConflict {
			t.Fatalf("timeout refund: want 200 or 409, got %d (%s)", code, body)
		}

		_, body = call(t, c, http.MethodGet, "/matches/"+matchID, "")
		if got := field(t, body, "state"); got != "refunded" {
			t.Fatalf("state: want refunded, got %s", got)
		}

		if ga, gb := balanceCents(t, a), balanceCents(t, b); ga != 5000 || gb != 5000 {
			t.Fatalf("balances after refund: want 5000/5000, got %d/%d", ga, gb)
		}
	})

	t.Run("insufficient_funds_rejected", func(t *testing.T) {
		code, body := call(t, c, http.MethodPost, "/matches", `{"stake":"1.00","joinExpirySecs":60}`)
		if code != http.StatusUnprocessableEntity {
			t.Fatalf("unfunded create: want 422, got %d (%s)", code, body)
		}
	})
}

func TestE2E_WalletValidation(t *testing.T) {
	waitUntilReady(t)

	a := player(t, "w")

	t.Run("duplicate_transaction_conflict", func(t *testing.T) {
		tid := uniqTxID("dup")

		code, body := postTransaction(t, a, a, "payment", "deposit", "5.00", tid)
		if code != http.StatusOK {
			t.Fatalf("first send: want 200, got %d (%s)", code, body)
		}

		code, body = postTransaction(t, a, a, "payment", "deposit", "5.00", tid)
		if code != http.StatusConflict {
			t.Fatalf("duplicate send: want 409, got %d (%s)", code, body)
		}

		if got := balanceCents(t, a); got != 500 {
			t.Fatalf("after duplicate: want 500, got %d", got)
		}
	})

	t.Run("withdraw_beyond_balance", func(t *testing.T) {
		code, body := postTransaction(t, a, a, "game", "withdraw", "6.00", uniqTxID("wd"))
		if code != http.StatusUnprocessableEntity {
			t.Fatalf("overdraw: want 422, got %d (%s)", code, body)
		}
	})

	t.Run("invalid_amount_precision", func(t *testing.T) {
		code, _ := postTransaction(t, a, a, "game", "deposit", "1.234", uniqTxID("prec"))
		if code != http.StatusBadRequest {
			t.Fatalf("bad amount precision: want 400, got %d", code)
		}
	})

	t.Run("invalid_source_type", func(t *testing.T) {
		code, _ := postTransaction(t, a, a, "bad-source", "deposit", "1.00", uniqTxID("src"))
		if code != http.StatusBadRequest {
			t.Fatalf("bad source-type: want 400, got %d", code)
		}
	})
}

/* -------------------- helpers -------------------- */

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return def
}

func player(t *testing.T, tag string) escrow.Identity {
	t.Helper()

	return escrow.Identity(fmt.Sprintf("e2e-%s-%d", tag, time.Now().UnixNano()))
}

// ensureConfig initializes the deployment config if needed and returns the
// vault reserve in cents.
func ensureConfig(t *testing.T) int64 {
	t.Helper()

	body := fmt.Sprintf(`{"serverAuthority":%q,"feeVault":%q}`, authority, feeVault)

	code, resp := call(t, admin, http.MethodPost, "/config", body)
	if code != http.StatusCreated && code != http.StatusConflict {
		t.Fatalf("init config: want 201 or 409, got %d (%s)", code, resp)
	}

	code, resp = call(t, admin, http.MethodGet, "/config", "")
	if code != http.StatusOK {
		t.Fatalf("get config: want 200, got %d (%s)", code, resp)
	}

	if got := field(t, resp, "serverAuthority"); got != authority.String() {
		t.Skipf("deployment uses server authority %q", got)
	}

	reserve, err := parseMoney(field(t, resp, "vaultReserve"))
	if err != nil {
		t.Fatalf("vault reserve: %v", err)
	}

	return reserve
}

func fund(t *testing.T, account escrow.Identity, amount string) {
	t.Helper()

	code, body := postTransaction(t, "payments", account, "payment", "deposit", amount, uniqTxID("fund"))
	if code != http.StatusOK {
		t.Fatalf("fund %s: want 200, got %d (%s)", account, code, body)
	}
}

func balanceCents(t *testing.T, account escrow.Identity) int64 {
	t.Helper()

	code, body := call(t, account, http.MethodGet, "/accounts/"+account.String()+"/balance", "")
	if code == http.StatusNotFound {
		return 0
	}

	if code != http.StatusOK {
		t.Fatalf("GET balance %s: want 200, got %d (%s)", account, code, body)
	}

	cents, err := parseMoney(field(t, body, "balance"))
	if err != nil {
		t.Fatalf("invalid balance format: %v", err)
	}

	return cents
}

func postTransaction(t *testing.T, caller, account escrow.Identity, source, direction, amount, txid string) (int, string) {
	t.Helper()

	data, err := json.Marshal(map[string]string{
		"direction":     direction,
		"amount":        amount,
		"transactionId": txid,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	return call(t, caller, http.MethodPost, "/accounts/"+account.String()+"/transaction", string(data), "Source-Type", source)
}

func call(t *testing.T, caller escrow.Identity, method, path, body string, header ...string) (int, string) {
	t.Helper()

	token, err := api.IssueToken(jwtSecret, jwtIssuer, caller, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

func field(t *testing.T, body, name string) string {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode json %q: %v", body, err)
	}

	v, ok := payload[name].(string)
	if !ok {
		t.Fatalf("field %q missing in %s", name, body)
	}

	return v
}

// waitUntilReady waits until GET /healthz responds 200 or times out.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	u := baseURL + "/healthz"

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", u, waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(u)
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func uniqTxID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func parseMoney(s string) (int64, error) {
	// expect something like "12.34" -> 1234 cents
	intPart, fracPart, ok := strings.Cut(s, ".")
	if !ok || len(fracPart) != 2 {
		return 0, fmt.Errorf("need 2 decimals in %q", s)
	}

	ip, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, err
	}

	fp, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, err
	}

	return ip*100 + fp, nil
}
