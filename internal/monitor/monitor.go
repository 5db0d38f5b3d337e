package monitor

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"demo_trader/internal/ledger"
	"demo_trader/internal/market"
	"demo_trader/internal/models"
)

// Notifier delivers a text message to a chat. Best-effort from the
// monitor's perspective; the transport logs its own failures.
type Notifier func(chatID int64, text string)

// Monitor re-evaluates alerts and TP/SL triggers against fresh prices on a
// fixed interval, mutating the ledger when a condition fires.
type Monitor struct {
	ledger   *ledger.Ledger
	oracle   market.PriceOracle
	notify   Notifier
	interval time.Duration

	ticking atomic.Bool // a tick never overlaps itself
}

// New returns a monitor over the given ledger.
func New(l *ledger.Ledger, oracle market.PriceOracle, notify Notifier, interval time.Duration) *Monitor {
	return &Monitor{
		ledger:   l,
		oracle:   oracle,
		notify:   notify,
		interval: interval,
	}
}

// Run ticks until the context is cancelled. It blocks; callers decide the
// goroutine.
func (m *Monitor) Run(ctx context.Context) {
	log.Printf("Trigger Monitor: started (interval %s)", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Trigger Monitor: stopped")
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one evaluation pass. A tick that finds the previous one still
// running is skipped, never queued. No registered session means no-op.
func (m *Monitor) Tick() {
	chatID := m.ledger.Session()
	if chatID == 0 {
		return
	}

	if !m.ticking.CompareAndSwap(false, true) {
		log.Println("Trigger Monitor: previous tick still running, skipping")
		return
	}
	defer m.ticking.Store(false)

	m.checkAlerts(chatID)
	m.checkTriggers(chatID)
}

// checkAlerts evaluates every standing alert against a fresh price.
// Iteration runs over a stable copy; a fired alert is removed from the live
// list by value, so firing removes exactly one instance and never re-fires.
func (m *Monitor) checkAlerts(chatID int64) {
	for _, alert := range m.ledger.Alerts() {
		price, err := m.oracle.GetPrice(alert.Symbol)
		if err != nil {
			log.Printf("Monitor: price unavailable for alert %s, retrying next tick: %v", alert.Symbol, err)
			continue
		}

		fired := (alert.Direction == models.DirectionAbove && price.GreaterThan(alert.Price)) ||
			(alert.Direction == models.DirectionBelow && price.LessThan(alert.Price))
		if !fired {
			continue
		}

		m.notify(chatID, fmt.Sprintf("🔔 *Alert triggered: %s* %s $%s | Current: $%s",
			alert.Symbol, alert.Direction, alert.Price.StringFixed(4), price.StringFixed(4)))

		if err := m.ledger.RemoveAlert(alert); err != nil {
			log.Printf("Monitor: failed to remove fired alert %s: %v", alert.Symbol, err)
		}
	}
}

// checkTriggers evaluates TP/SL per position, take-profit first so the
// ordering is deterministic when both could match. A trigger exits the
// whole position via the ledger, which guarantees the sale happens at most
// once even across racing ticks.
func (m *Monitor) checkTriggers(chatID int64) {
	for symbol, pos := range m.ledger.Holdings() {
		price, err := m.oracle.GetPrice(symbol)
		if err != nil {
			log.Printf("Monitor: price unavailable for %s, retrying next tick: %v", symbol, err)
			continue
		}

		switch {
		case pos.TakeProfit != nil && price.GreaterThanOrEqual(*pos.TakeProfit):
			res, err := m.ledger.SellAll(symbol)
			if err != nil {
				log.Printf("Monitor: take-profit exit failed for %s: %v", symbol, err)
				continue
			}
			m.notify(chatID, fmt.Sprintf("📈 *Take-Profit triggered for %s:* sold all at $%s | Proceeds: $%s",
				symbol, res.Price.StringFixed(4), res.UsdAmount.StringFixed(4)))

		case pos.StopLoss != nil && price.LessThanOrEqual(*pos.StopLoss):
			res, err := m.ledger.SellAll(symbol)
			if err != nil {
				log.Printf("Monitor: stop-loss exit failed for %s: %v", symbol, err)
				continue
			}
			m.notify(chatID, fmt.Sprintf("📉 *Stop-Loss triggered for %s:* sold all at $%s | Proceeds: $%s",
				symbol, res.Price.StringFixed(4), res.UsdAmount.StringFixed(4)))
		}
	}
}
