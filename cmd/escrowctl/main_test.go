package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/pvpescrow/internal/api"
	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	method string
	path   string
	caller escrow.Identity
	source string
	body   map[string]any
}

type recorder struct {
	mu     sync.Mutex
	seen   []seenRequest
	status int
	reply  string
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth := api.NewAuthenticator("s3cret", "pvpescrow", time.Second)

	raw := r.Header.Get("Authorization")
	caller, err := auth.Verify(raw[len("Bearer "):])
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body map[string]any

	data, _ := io.ReadAll(r.Body)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	rec.mu.Lock()
	rec.seen = append(rec.seen, seenRequest{
		method: r.Method,
		path:   r.URL.Path,
		caller: caller,
		source: r.Header.Get("Source-Type"),
		body:   body,
	})
	rec.mu.Unlock()

	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}

	w.WriteHeader(status)
	_, _ = w.Write([]byte(rec.reply))
}

func run(t *testing.T, rec *recorder, args ...string) (string, error) {
	t.Helper()

	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	argv := append([]string{"escrowctl", "--url", srv.URL, "--secret", "s3cret"}, args...)
	err := app.Run(context.Background(), argv)

	return out.String(), err
}

func TestMatchCreate(t *testing.T) {
	t.Parallel()

	rec := &recorder{reply: `{"matchId":"x","state":"waiting_for_b"}`}

	out, err := run(t, rec, "--as", "alice", "match", "create", "--stake", "10.00", "--join-expiry", "90s")
	require.NoError(t, err)

	require.Len(t, rec.seen, 1)
	got := rec.seen[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/matches", got.path)
	assert.Equal(t, escrow.Identity("alice"), got.caller)
	assert.Equal(t, "10.00", got.body["stake"])
	assert.EqualValues(t, 90, got.body["joinExpirySecs"])

	assert.Contains(t, out, `"state": "waiting_for_b"`)
}

func TestMatchSubcommands(t *testing.T) {
	t.Parallel()

	id := "0b6f3c52-8d7e-4f0a-9c1b-2d3e4f5a6b7c"

	tests := []struct {
		args   []string
		method string
		path   string
		body   map[string]any
	}{
		{[]string{"match", "join", "--settle-window", "10m", id}, http.MethodPost, "/matches/" + id + "/join", map[string]any{"settleWindowSecs": float64(600)}},
		{[]string{"match", "settle", "--winner", "bob", id}, http.MethodPost, "/matches/" + id + "/settle", map[string]any{"winner": "bob"}},
		{[]string{"match", "cancel-unjoined", id}, http.MethodPost, "/matches/" + id + "/cancel-unjoined", nil},
		{[]string{"match", "cancel", "--player-b", "bob", id}, http.MethodPost, "/matches/" + id + "/cancel", map[string]any{"playerB": "bob"}},
		{[]string{"match", "timeout-refund", id}, http.MethodPost, "/matches/" + id + "/timeout-refund", nil},
		{[]string{"match", "get", id}, http.MethodGet, "/matches/" + id, nil},
		{[]string{"match", "transfers", id}, http.MethodGet, "/matches/" + id + "/transfers", nil},
	}

	for _, tt := range tests {
		rec := &recorder{reply: `{}`}

		_, err := run(t, rec, append([]string{"--as", "server"}, tt.args...)...)
		require.NoError(t, err, tt.args)
		require.Len(t, rec.seen, 1, tt.args)

		assert.Equal(t, tt.method, rec.seen[0].method, tt.args)
		assert.Equal(t, tt.path, rec.seen[0].path, tt.args)
		assert.Equal(t, tt.body, rec.seen[0].body, tt.args)
	}
}

func TestAccountDeposit(t *testing.T) {
	t.Parallel()

	rec := &recorder{reply: `{"status":"ok"}`}

	_, err := run(t, rec, "--as", "payments", "account", "deposit", "--amount", "5.50", "--transaction-id", "dep-1", "alice")
	require.NoError(t, err)

	require.Len(t, rec.seen, 1)
	got := rec.seen[0]
	assert.Equal(t, "/accounts/alice/transaction", got.path)
	assert.Equal(t, "payment", got.source)
	assert.Equal(t, map[string]any{"direction": "deposit", "amount": "5.50", "transactionId": "dep-1"}, got.body)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	rec := &recorder{status: http.StatusConflict, reply: `{"error":"invalid state transition","reason":"invalid_state"}`}

	_, err := run(t, rec, "--as", "server", "match", "settle", "--winner", "bob", "0b6f3c52-8d7e-4f0a-9c1b-2d3e4f5a6b7c")
	require.ErrorIs(t, err, errRequestFailed)
	assert.Contains(t, err.Error(), "409")

	_, err = run(t, &recorder{}, "--as", "server", "match", "get", "not-a-uuid")
	require.Error(t, err)

	_, err = run(t, &recorder{}, "--as", "vault:abc", "config", "get")
	require.ErrorIs(t, err, escrow.ErrInvalidIdentity)
}
