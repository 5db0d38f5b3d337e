package bot

import (
	"fmt"
	"strings"

	"demo_trader/internal/models"

	"github.com/shopspring/decimal"
)

// formatPortfolio renders the snapshot as the portfolio reply: a summary
// header plus a markdown table, four decimals throughout.
func formatPortfolio(view *models.PortfolioView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💰 *Balance:* $%s\n", view.Balance.StringFixed(4)))
	sb.WriteString(fmt.Sprintf("📈 *Total Portfolio Value:* $%s\n", view.TotalValue.StringFixed(4)))
	sb.WriteString(fmt.Sprintf("📉 *Total P&L:* $%s\n\n", view.TotalProfit.StringFixed(4)))
	sb.WriteString("*Your holdings:*\n")
	sb.WriteString(formatHoldingsTable(view.Rows))
	return sb.String()
}

func formatHoldingsTable(rows []models.PortfolioRow) string {
	if len(rows) == 0 {
		return "❌ No holdings yet."
	}

	headers := []string{"Symbol", "Amount", "Avg Price", "Current Price", "Value", "P&L", "TP", "SL"}

	var sb strings.Builder
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")

	for _, row := range rows {
		cur, value, profit := "n/a", "n/a", "n/a"
		if !row.PriceUnavailable {
			cur = row.CurrentPrice.StringFixed(4)
			value = row.Value.StringFixed(4)
			profit = row.Profit.StringFixed(4)
		}
		cells := []string{
			row.Symbol,
			row.Amount.StringFixed(4),
			row.AvgPrice.StringFixed(4),
			cur,
			value,
			profit,
			formatTrigger(row.TakeProfit),
			formatTrigger(row.StopLoss),
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return sb.String()
}

func formatTrigger(t *decimal.Decimal) string {
	if t == nil {
		return "-"
	}
	return t.StringFixed(4)
}
