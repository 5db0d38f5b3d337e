package market

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBinanceProvider_GetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("Unexpected symbol: %s", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"60123.45000000"}`))
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL)
	price, err := p.GetPrice("BTCUSDT")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(60123.45)) {
		t.Errorf("Expected 60123.45, got %s", price)
	}
}

func TestBinanceProvider_GetPrice_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Binance answers 400 with an error payload for unknown symbols.
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL)
	if _, err := p.GetPrice("NOPEUSDT"); err == nil {
		t.Fatal("Expected error for unknown symbol")
	}
}

func TestBinanceProvider_ListSymbols_FiltersAndCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","price":"60000"},
			{"symbol":"ETHBTC","price":"0.05"},
			{"symbol":"ETHUSDT","price":"3000"}
		]`))
	}))
	defer srv.Close()

	p := NewBinanceProvider(srv.URL)

	symbols, err := p.ListSymbols("USDT")
	if err != nil {
		t.Fatalf("ListSymbols failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("Expected 2 USDT pairs, got %v", symbols)
	}

	// Second call within the TTL must be served from cache.
	if _, err := p.ListSymbols("USDT"); err != nil {
		t.Fatalf("Cached ListSymbols failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", calls)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"btcusdt":   "BTCUSDT",
		"BTC/USDT":  "BTCUSDT",
		" eth/usdt": "ETHUSDT",
		"BTCUSDT":   "BTCUSDT",
	}
	for in, want := range cases {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
