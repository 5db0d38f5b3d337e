package market

import "github.com/shopspring/decimal"

// PriceOracle is the market-data boundary. Any struct that implements these
// methods satisfies the interface, which lets tests swap in a mock and keeps
// the ledger and monitor independent of the exchange behind it.
//
// Both methods may fail transiently; callers treat every failure as "price
// unavailable", never as fatal.
type PriceOracle interface {
	// GetPrice returns the current price for a normalized symbol
	// (e.g. "BTCUSDT").
	GetPrice(symbol string) (decimal.Decimal, error)

	// ListSymbols returns the tradable universe for a quote currency
	// (e.g. "USDT" -> all *USDT pairs).
	ListSymbols(quote string) ([]string, error)
}
