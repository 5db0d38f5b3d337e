package ledger

import (
	"log"
	"sort"

	"demo_trader/internal/models"
)

// Snapshot prices the account for display. Holdings are copied out under
// the read lock first, then priced without it: one quote per holding, so a
// slow oracle never blocks mutations. Symbols whose price cannot be fetched
// are still listed, flagged unavailable, and left out of the aggregates.
func (l *Ledger) Snapshot() *models.PortfolioView {
	l.mu.RLock()
	balance := l.account.Balance
	holdings := make(map[string]models.Position, len(l.account.Holdings))
	for sym, pos := range l.account.Holdings {
		holdings[sym] = pos
	}
	l.mu.RUnlock()

	view := &models.PortfolioView{
		Balance:    balance,
		TotalValue: balance,
	}

	symbols := make([]string, 0, len(holdings))
	for sym := range holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols) // stable table order for the user

	for _, sym := range symbols {
		pos := holdings[sym]
		row := models.PortfolioRow{
			Symbol:     sym,
			Amount:     pos.Amount,
			AvgPrice:   pos.AvgPrice,
			TakeProfit: pos.TakeProfit,
			StopLoss:   pos.StopLoss,
		}

		price, err := l.oracle.GetPrice(sym)
		if err != nil {
			log.Printf("Snapshot: price unavailable for %s: %v", sym, err)
			row.PriceUnavailable = true
			view.Rows = append(view.Rows, row)
			continue
		}

		row.CurrentPrice = price
		row.Value = pos.Amount.Mul(price)
		row.Profit = price.Sub(pos.AvgPrice).Mul(pos.Amount)

		view.TotalValue = view.TotalValue.Add(row.Value)
		view.TotalProfit = view.TotalProfit.Add(row.Profit)
		view.Rows = append(view.Rows, row)
	}

	return view
}
