package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StreetBook/internal/engine"
	"StreetBook/internal/market"
	"StreetBook/internal/observability"
	"StreetBook/internal/server"
)

type nopBank struct{}

func (nopBank) Pay(uuid.UUID, *big.Int) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *observability.HealthChecker) {
	t.Helper()

	eng := engine.New(0, market.DefaultParams(), uuid.New(), nopBank{},
		make(chan engine.Record, 1024), nil, nil)
	svc := server.NewService(eng, nil, zerolog.Nop())
	handlers := server.NewHandlers(svc, nil)
	health := observability.NewHealthChecker()

	srv := server.NewServer(server.Config{Port: 0}, handlers, health, nil, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, health
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func createMarket(t *testing.T, ts *httptest.Server, creator uuid.UUID) string {
	t.Helper()
	resp, out := postJSON(t, ts.URL+"/v1/markets", map[string]any{
		"question":   "will it ship by friday",
		"creator":    creator,
		"expires_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"heat":       "mid",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create market status = %d, body %v", resp.StatusCode, out)
	}
	id, _ := out["market_id"].(string)
	if id == "" {
		t.Fatal("missing market_id in response")
	}
	return id
}

func TestCreateAndGetMarket(t *testing.T) {
	ts, _ := newTestServer(t)
	creator := uuid.New()

	id := createMarket(t, ts, creator)

	resp, view := getJSON(t, ts.URL+"/v1/markets/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get market status = %d", resp.StatusCode)
	}
	if view["phase"] != "active" {
		t.Errorf("phase = %v, want active", view["phase"])
	}
	// fresh market: both sides at half the unit price
	if view["yes_price"] != "500000000000000000" {
		t.Errorf("yes_price = %v", view["yes_price"])
	}
	if view["refund_eligible"] != false {
		t.Error("fresh market should not be refund eligible")
	}
}

func TestBuySellAndPosition(t *testing.T) {
	ts, _ := newTestServer(t)
	creator := uuid.New()
	trader := uuid.New()
	id := createMarket(t, ts, creator)

	resp, out := postJSON(t, ts.URL+"/v1/markets/"+id+"/buy", map[string]any{
		"account":   trader,
		"side":      "yes",
		"amount_in": "100000000000000000000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy status = %d, body %v", resp.StatusCode, out)
	}

	resp, pos := getJSON(t, fmt.Sprintf("%s/v1/markets/%s/positions/%s", ts.URL, id, trader))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get position status = %d", resp.StatusCode)
	}
	if pos["yes_shares"] == "0" {
		t.Error("expected nonzero yes shares after buy")
	}
	if pos["no_shares"] != "0" {
		t.Errorf("no_shares = %v, want 0", pos["no_shares"])
	}

	// creator fee accrued to the withdrawal ledger
	resp, bal := getJSON(t, fmt.Sprintf("%s/v1/accounts/%s/balance", ts.URL, creator))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get balance status = %d", resp.StatusCode)
	}
	if bal["creator_fees"] == "0" {
		t.Error("expected creator fees after buy")
	}

	resp, out = postJSON(t, ts.URL+"/v1/markets/"+id+"/sell", map[string]any{
		"account": trader,
		"side":    "yes",
		"shares":  pos["yes_shares"],
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell status = %d, body %v", resp.StatusCode, out)
	}
}

func TestQuoteEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createMarket(t, ts, uuid.New())

	resp, quote := getJSON(t, ts.URL+"/v1/markets/"+id+"/quote?side=yes&amount_in=1000000000000000000")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote status = %d", resp.StatusCode)
	}
	if quote["shares"] == "" || quote["shares"] == "0" {
		t.Errorf("quote shares = %v", quote["shares"])
	}

	resp, _ = getJSON(t, ts.URL+"/v1/markets/"+id+"/quote?side=yes")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("quote without size: status = %d, want 400", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createMarket(t, ts, uuid.New())

	resp, _ := getJSON(t, ts.URL+"/v1/markets/"+uuid.New().String())
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown market: status = %d, want 404", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/v1/markets/"+id+"/buy", map[string]any{
		"account":   uuid.New(),
		"side":      "maybe",
		"amount_in": "1000",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad side: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/v1/markets/"+id+"/sell", map[string]any{
		"account": uuid.New(),
		"side":    "yes",
		"shares":  "1000000000000000000",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("sell without shares: status = %d, want 409", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/v1/withdrawals", map[string]any{
		"account": uuid.New(),
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("empty withdraw: status = %d, want 409", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, health := newTestServer(t)

	resp, _ := getJSON(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, _ = getJSON(t, ts.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready: status = %d, want 503", resp.StatusCode)
	}

	health.SetReady(true)
	resp, _ = getJSON(t, ts.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz after ready: status = %d", resp.StatusCode)
	}
}
