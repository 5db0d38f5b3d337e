package ledger

import (
	"fmt"
	"log"
	"sync"

	"demo_trader/internal/market"
	"demo_trader/internal/models"
	"demo_trader/internal/storage"

	"github.com/shopspring/decimal"
)

// dustEpsilon absorbs decimal division remainders: a partial sell that lands
// within this distance of the full holding is treated as a full sell so no
// dust position is ever stranded.
var dustEpsilon = decimal.New(1, -8) // 1e-8

// TriggerKind selects which exit trigger SetTrigger mutates.
type TriggerKind string

const (
	TriggerTakeProfit TriggerKind = "tp"
	TriggerStopLoss   TriggerKind = "sl"
)

// Ledger is the account aggregate. It is the single serialization point for
// every mutation: the conversation engine and the trigger monitor both go
// through it, and each mutation is "read state, compute, persist, publish"
// under one lock. Oracle calls stay outside the lock so a slow quote does
// not block unrelated reads.
type Ledger struct {
	mu      sync.RWMutex
	account models.Account
	oracle  market.PriceOracle
	store   *storage.Store
}

// New loads the account from the store and wraps it in a ledger.
func New(oracle market.PriceOracle, store *storage.Store) (*Ledger, error) {
	a, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return &Ledger{account: a, oracle: oracle, store: store}, nil
}

// TradeResult reports an executed buy or sell.
type TradeResult struct {
	Symbol     string
	CoinAmount decimal.Decimal // coins bought or sold
	UsdAmount  decimal.Decimal // cash debited or credited
	Price      decimal.Decimal // execution price
}

// persistLocked saves the account and restores prev if the save fails.
// Callers must hold the write lock and pass a clone taken before mutating.
func (l *Ledger) persistLocked(prev models.Account) error {
	if err := l.store.Save(l.account); err != nil {
		log.Printf("ERROR: persisting account failed, rolling back: %v", err)
		l.account = prev
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Quote returns the current price for a symbol. Pure pass-through to the
// oracle; not part of the mutation lock.
func (l *Ledger) Quote(symbol string) (decimal.Decimal, error) {
	price, err := l.oracle.GetPrice(symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return price, nil
}

// Buy spends usdAmount of free cash on symbol at the current price.
// An existing position is averaged in; a new one starts with no triggers.
func (l *Ledger) Buy(symbol string, usdAmount decimal.Decimal) (*TradeResult, error) {
	price, err := l.Quote(symbol)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if usdAmount.GreaterThan(l.account.Balance) {
		return nil, ErrInsufficientBalance
	}

	coinAmount := usdAmount.Div(price)

	prev := l.account.Clone()

	if pos, ok := l.account.Holdings[symbol]; ok {
		// Weighted average entry: (oldAmount*oldAvg + usd) / (oldAmount+coins)
		totalCost := pos.Amount.Mul(pos.AvgPrice).Add(usdAmount)
		totalAmount := pos.Amount.Add(coinAmount)
		pos.Amount = totalAmount
		pos.AvgPrice = totalCost.Div(totalAmount)
		l.account.Holdings[symbol] = pos
	} else {
		l.account.Holdings[symbol] = models.Position{
			Amount:   coinAmount,
			AvgPrice: price,
		}
	}
	l.account.Balance = l.account.Balance.Sub(usdAmount)

	if err := l.persistLocked(prev); err != nil {
		return nil, err
	}

	return &TradeResult{Symbol: symbol, CoinAmount: coinAmount, UsdAmount: usdAmount, Price: price}, nil
}

// SellAll liquidates the whole position at the current price and removes it.
func (l *Ledger) SellAll(symbol string) (*TradeResult, error) {
	if !l.Holds(symbol) {
		return nil, ErrNoSuchPosition
	}

	price, err := l.Quote(symbol)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-check under the lock: the monitor may have exited the position
	// between the pre-check and the quote.
	pos, ok := l.account.Holdings[symbol]
	if !ok {
		return nil, ErrNoSuchPosition
	}

	usdAmount := pos.Amount.Mul(price)

	prev := l.account.Clone()
	l.account.Balance = l.account.Balance.Add(usdAmount)
	delete(l.account.Holdings, symbol)

	if err := l.persistLocked(prev); err != nil {
		return nil, err
	}

	return &TradeResult{Symbol: symbol, CoinAmount: pos.Amount, UsdAmount: usdAmount, Price: price}, nil
}

// SellPartial sells usdAmount worth of the position at the current price.
// A requested amount above the holding is rejected, never clamped; a
// remainder within dustEpsilon collapses into a full sell.
func (l *Ledger) SellPartial(symbol string, usdAmount decimal.Decimal) (*TradeResult, error) {
	if !l.Holds(symbol) {
		return nil, ErrNoSuchPosition
	}

	price, err := l.Quote(symbol)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.account.Holdings[symbol]
	if !ok {
		return nil, ErrNoSuchPosition
	}

	coinAmount := usdAmount.Div(price)
	if coinAmount.GreaterThan(pos.Amount.Add(dustEpsilon)) {
		return nil, ErrInsufficientHoldings
	}

	prev := l.account.Clone()

	remaining := pos.Amount.Sub(coinAmount)
	if remaining.LessThanOrEqual(dustEpsilon) {
		// Full sell: credit the entire holding, not the rounded request.
		coinAmount = pos.Amount
		usdAmount = pos.Amount.Mul(price)
		delete(l.account.Holdings, symbol)
	} else {
		pos.Amount = remaining
		l.account.Holdings[symbol] = pos
	}
	l.account.Balance = l.account.Balance.Add(usdAmount)

	if err := l.persistLocked(prev); err != nil {
		return nil, err
	}

	return &TradeResult{Symbol: symbol, CoinAmount: coinAmount, UsdAmount: usdAmount, Price: price}, nil
}

// SetTrigger stores or clears a take-profit/stop-loss target on a held
// position. A target of zero or below clears the trigger: a price of 0 is
// not a meaningful trading target, so "0" and "unset" share cancel
// semantics on input while storage keeps a clean null.
func (l *Ledger) SetTrigger(symbol string, kind TriggerKind, target decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.account.Holdings[symbol]
	if !ok {
		return ErrNoSuchPosition
	}

	var value *decimal.Decimal
	if target.IsPositive() {
		t := target
		value = &t
	}

	prev := l.account.Clone()
	switch kind {
	case TriggerTakeProfit:
		pos.TakeProfit = value
	case TriggerStopLoss:
		pos.StopLoss = value
	default:
		return fmt.Errorf("unknown trigger kind %q", kind)
	}
	l.account.Holdings[symbol] = pos

	return l.persistLocked(prev)
}

// AddAlert appends a standing price alert.
func (l *Ledger) AddAlert(symbol string, target decimal.Decimal, direction string) error {
	if direction != models.DirectionAbove && direction != models.DirectionBelow {
		return fmt.Errorf("invalid alert direction %q", direction)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.account.Clone()
	l.account.Alerts = append(l.account.Alerts, models.Alert{
		Symbol:    symbol,
		Price:     target,
		Direction: direction,
	})

	return l.persistLocked(prev)
}

// RemoveAlert deletes the first alert matching a by value. Used by the
// monitor after an alert fires; firing removes exactly one instance.
func (l *Ledger) RemoveAlert(a models.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i, existing := range l.account.Alerts {
		if existing.Equal(a) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil // already gone, nothing to persist
	}

	prev := l.account.Clone()
	l.account.Alerts = append(l.account.Alerts[:idx], l.account.Alerts[idx+1:]...)

	return l.persistLocked(prev)
}

// RegisterSession stores the chat to address notifications to.
func (l *Ledger) RegisterSession(chatID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account.ChatID == chatID {
		return nil
	}

	prev := l.account.Clone()
	l.account.ChatID = chatID
	return l.persistLocked(prev)
}

// Session returns the registered notification chat, or 0 if none yet.
func (l *Ledger) Session() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account.ChatID
}

// Balance returns the free cash.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account.Balance
}

// Holds reports whether a position exists for symbol.
func (l *Ledger) Holds(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.account.Holdings[symbol]
	return ok
}

// Holdings returns a copy of the positions, safe to iterate while the live
// map keeps mutating.
func (l *Ledger) Holdings() map[string]models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]models.Position, len(l.account.Holdings))
	for sym, pos := range l.account.Holdings {
		out[sym] = pos
	}
	return out
}

// Alerts returns a copy of the alert list in insertion order. The monitor
// iterates this stable copy and applies removals against the live list.
func (l *Ledger) Alerts() []models.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Alert, len(l.account.Alerts))
	copy(out, l.account.Alerts)
	return out
}
