package market

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// symbolCacheTTL bounds how often the full ticker list is re-fetched. The
// universe is consulted on every buy-symbol validation and the endpoint
// returns thousands of pairs.
const symbolCacheTTL = 5 * time.Minute

// BinanceProvider is a concrete implementation of PriceOracle for the
// Binance spot REST API. Only public endpoints are used, no credentials.
type BinanceProvider struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	symbolCache map[string][]string // quote -> symbols
	cacheTime   time.Time
}

// NewBinanceProvider returns a provider for the given API base URL
// (normally https://api.binance.com).
func NewBinanceProvider(baseURL string) *BinanceProvider {
	return &BinanceProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
		symbolCache: make(map[string][]string),
	}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice fetches the latest spot price for a symbol.
func (b *BinanceProvider) GetPrice(symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.baseURL, symbol)

	resp, err := b.client.Get(url)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("binance ticker %s: status %s", symbol, resp.Status)
	}

	var t tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance ticker %s: bad price %q", symbol, t.Price)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("binance ticker %s: non-positive price %s", symbol, price)
	}
	return price, nil
}

// ListSymbols returns all pairs quoted in the given currency, e.g. "USDT".
// Results are cached for a few minutes.
func (b *BinanceProvider) ListSymbols(quote string) ([]string, error) {
	b.mu.Lock()
	if cached, ok := b.symbolCache[quote]; ok && time.Since(b.cacheTime) < symbolCacheTTL {
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	url := b.baseURL + "/api/v3/ticker/price"
	resp, err := b.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance tickers: status %s", resp.Status)
	}

	var tickers []tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, err
	}

	var symbols []string
	for _, t := range tickers {
		if strings.HasSuffix(t.Symbol, quote) {
			symbols = append(symbols, t.Symbol)
		}
	}

	b.mu.Lock()
	b.symbolCache[quote] = symbols
	b.cacheTime = time.Now()
	b.mu.Unlock()

	return symbols, nil
}

// NormalizeSymbol uppercases a user-entered symbol and strips any "/"
// separator, so both "btc/usdt" and "BTCUSDT" resolve to "BTCUSDT".
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
}
