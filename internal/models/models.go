package models

import "github.com/shopspring/decimal"

// Position is a held quantity of one coin with its cost basis and optional
// exit triggers.
//
// TakeProfit and StopLoss are pointers so that "no trigger set" survives a
// JSON round-trip as null instead of collapsing into a zero price.
type Position struct {
	Amount     decimal.Decimal  `json:"amount"`                // coin quantity, always > 0
	AvgPrice   decimal.Decimal  `json:"avg_price"`             // volume-weighted entry price
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"` // sell all when price >= target
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`   // sell all when price <= target
}

// Alert is a standing watch on a price crossing a threshold, independent of
// any position. Alerts are pure values: removal matches on all three fields.
type Alert struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Direction string          `json:"direction"` // "above" or "below"
}

// Equal reports whether two alerts describe the same watch. Used for
// remove-by-value after an alert fires; decimal prices compare numerically,
// not structurally.
func (a Alert) Equal(b Alert) bool {
	return a.Symbol == b.Symbol && a.Direction == b.Direction && a.Price.Equal(b.Price)
}

// Alert directions.
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// Account is the single demo account. This struct matches the structure of
// the JSON storage file.
type Account struct {
	Version  string              `json:"version"`
	Balance  decimal.Decimal     `json:"balance"`
	Holdings map[string]Position `json:"holdings"`
	Alerts   []Alert             `json:"alerts"`
	ChatID   int64               `json:"chat_id,omitempty"` // notification endpoint, 0 until first /start
}

// Clone returns a deep copy of the account. Mutations work on the live
// account and restore a clone if the save fails.
func (a Account) Clone() Account {
	c := a
	c.Holdings = make(map[string]Position, len(a.Holdings))
	for sym, pos := range a.Holdings {
		c.Holdings[sym] = pos
	}
	c.Alerts = make([]Alert, len(a.Alerts))
	copy(c.Alerts, a.Alerts)
	return c
}

// PortfolioRow is one holding priced for display.
type PortfolioRow struct {
	Symbol       string
	Amount       decimal.Decimal
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	Value        decimal.Decimal
	Profit       decimal.Decimal
	TakeProfit   *decimal.Decimal
	StopLoss     *decimal.Decimal
	// PriceUnavailable marks a row whose symbol could not be quoted this
	// time. The row is still listed but excluded from the aggregates.
	PriceUnavailable bool
}

// PortfolioView is a consistent, fully priced snapshot of the account.
// TotalValue and TotalProfit are derived from the priced rows only.
type PortfolioView struct {
	Balance     decimal.Decimal
	TotalValue  decimal.Decimal
	TotalProfit decimal.Decimal
	Rows        []PortfolioRow
}
