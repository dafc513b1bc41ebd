package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/auctionledger/onboard/internal/config"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func testConfig(t *testing.T, caURL, gatewayURL string) *config.Config {
	t.Helper()
	tmp := t.TempDir()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.TokenTTL = time.Hour
	cfg.UsersFile = writeFile(t, tmp, "users.json", `{"users":[
		{"userId":"alice","org":"Org1","balance":100,"email":"alice@example.com"},
		{"userId":"bob","org":"Org2","balance":50}
	]}`)
	cfg.TokenFile = filepath.Join(tmp, "tokens.json")
	cfg.CAEndpoint = caURL
	cfg.GatewayEndpoint = gatewayURL
	cfg.RetryAttempts = 0
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func TestApp_RunEndToEnd(t *testing.T) {
	var registered, invoked atomic.Int32

	ca := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registered.Add(1)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(ca.Close)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"txId":"tx-1"}`))
	}))
	t.Cleanup(gateway.Close)

	cfg := testConfig(t, ca.URL, gateway.URL)

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	require.Equal(t, int32(2), registered.Load())
	require.Equal(t, int32(2), invoked.Load())

	data, err := os.ReadFile(cfg.TokenFile)
	require.NoError(t, err)

	var entries []struct {
		User    map[string]any `json:"user"`
		TokenID string         `json:"tokenId"`
	}
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "alice", entries[0].User["userId"])
	require.Equal(t, "bob", entries[1].User["userId"])
	require.NotContains(t, entries[0].User, "balance")
	require.NotEmpty(t, entries[0].TokenID)
}

func TestApp_RunSkipsBadTypedEntry(t *testing.T) {
	ca := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(ca.Close)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"txId":"tx-1"}`))
	}))
	t.Cleanup(gateway.Close)

	cfg := testConfig(t, ca.URL, gateway.URL)
	cfg.UsersFile = writeFile(t, t.TempDir(), "users.json", `{"users":[
		{"userId":"alice","org":"Org1","balance":100},
		{"userId":"mallory","org":"Org1","balance":"lots"},
		{"userId":"bob","org":"Org2","balance":50}
	]}`)

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(cfg.TokenFile)
	require.NoError(t, err)

	var entries []struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "alice", entries[0].User["userId"])
	require.Equal(t, "bob", entries[1].User["userId"])
}

func TestApp_RunSucceedsWhenServicesDown(t *testing.T) {
	// unreachable adapters: per-user failures are best-effort, tokens are
	// still issued and persisted
	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(cfg.TokenFile)
	require.NoError(t, err)

	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
}

func TestApp_RunFailsOnMissingBatch(t *testing.T) {
	ca := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(ca.Close)

	cfg := testConfig(t, ca.URL, ca.URL)
	cfg.UsersFile = filepath.Join(t.TempDir(), "absent.json")

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.Error(t, a.Run(context.Background()))
}

func TestNewApp_RequiresSecretWithoutTerminal(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal, prompt would block")
	}

	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.SecretKey = ""

	_, err := NewApp(context.Background(), cfg)
	require.Error(t, err)
}
