package monitor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"demo_trader/internal/ledger"
	"demo_trader/internal/models"
	"demo_trader/internal/storage"

	"github.com/shopspring/decimal"
)

// MockOracle implements market.PriceOracle for testing.
type MockOracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (m *MockOracle) GetPrice(symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	return decimal.Zero, fmt.Errorf("price not found for %s", symbol)
}

func (m *MockOracle) ListSymbols(quote string) ([]string, error) { return nil, nil }

func (m *MockOracle) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices == nil {
		m.prices = map[string]decimal.Decimal{}
	}
	m.prices[symbol] = decimal.NewFromFloat(price)
}

func (m *MockOracle) Unset(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prices, symbol)
}

// notifySpy records delivered notifications.
type notifySpy struct {
	mu       sync.Mutex
	messages []string
}

func (n *notifySpy) send(chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *notifySpy) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *notifySpy) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

func newTestMonitor(t *testing.T, balance float64) (*Monitor, *ledger.Ledger, *MockOracle, *notifySpy) {
	t.Helper()
	oracle := &MockOracle{}
	store := storage.NewStore(filepath.Join(t.TempDir(), "demo_account.json"), decimal.NewFromFloat(balance))
	l, err := ledger.New(oracle, store)
	if err != nil {
		t.Fatalf("New ledger failed: %v", err)
	}
	spy := &notifySpy{}
	m := New(l, oracle, spy.send, 30*time.Second)
	return m, l, oracle, spy
}

func TestTick_NoSessionIsNoop(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	oracle.SetPrice("BTCUSDT", 70000)

	if err := l.AddAlert("BTCUSDT", decimal.NewFromInt(60000), models.DirectionAbove); err != nil {
		t.Fatalf("AddAlert failed: %v", err)
	}

	m.Tick()

	if spy.count() != 0 {
		t.Error("Expected no notifications without a registered session")
	}
	if len(l.Alerts()) != 1 {
		t.Error("Alert must not fire without a registered session")
	}
}

func TestTick_AlertFiresOnceAndIsRemoved(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	if err := l.RegisterSession(42); err != nil {
		t.Fatalf("RegisterSession failed: %v", err)
	}

	if err := l.AddAlert("BTCUSDT", decimal.NewFromInt(60000), models.DirectionAbove); err != nil {
		t.Fatalf("AddAlert failed: %v", err)
	}

	// Below target: no fire. "Above" means strictly greater.
	oracle.SetPrice("BTCUSDT", 60000)
	m.Tick()
	if spy.count() != 0 {
		t.Fatal("Alert fired at exactly the target price")
	}

	// Crossing fires exactly once and removes the alert.
	oracle.SetPrice("BTCUSDT", 60001)
	m.Tick()
	if spy.count() != 1 {
		t.Fatalf("Expected 1 notification, got %d", spy.count())
	}
	if !strings.Contains(spy.last(), "BTCUSDT") {
		t.Errorf("Notification missing symbol: %s", spy.last())
	}
	if len(l.Alerts()) != 0 {
		t.Error("Fired alert not removed")
	}

	// No re-fire after removal.
	m.Tick()
	if spy.count() != 1 {
		t.Errorf("Alert re-fired after removal: %d notifications", spy.count())
	}
}

func TestTick_BelowAlert(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	l.RegisterSession(42)
	l.AddAlert("ETHUSDT", decimal.NewFromInt(2000), models.DirectionBelow)

	oracle.SetPrice("ETHUSDT", 2000)
	m.Tick()
	if spy.count() != 0 {
		t.Fatal("Below-alert fired at exactly the target price")
	}

	oracle.SetPrice("ETHUSDT", 1999.99)
	m.Tick()
	if spy.count() != 1 {
		t.Fatalf("Expected 1 notification, got %d", spy.count())
	}
}

func TestTick_TakeProfitSellsExactlyOnce(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	l.RegisterSession(42)

	oracle.SetPrice("BTCUSDT", 100)
	if _, err := l.Buy("BTCUSDT", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := l.SetTrigger("BTCUSDT", ledger.TriggerTakeProfit, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("SetTrigger failed: %v", err)
	}

	// Price at TP threshold fires (>=).
	oracle.SetPrice("BTCUSDT", 120)
	m.Tick()

	if spy.count() != 1 {
		t.Fatalf("Expected 1 notification, got %d", spy.count())
	}
	if !strings.Contains(spy.last(), "Take-Profit") {
		t.Errorf("Expected take-profit notification, got: %s", spy.last())
	}
	if l.Holds("BTCUSDT") {
		t.Error("Position not removed after take-profit exit")
	}

	// 5 units sold at $120: balance 500 + 600.
	if !l.Balance().Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected balance 1100, got %s", l.Balance())
	}

	// A second tick must not sell again.
	m.Tick()
	if spy.count() != 1 {
		t.Errorf("Take-profit fired twice: %d notifications", spy.count())
	}
	if !l.Balance().Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Balance changed on second tick: %s", l.Balance())
	}
}

func TestTick_StopLoss(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	l.RegisterSession(42)

	oracle.SetPrice("ETHUSDT", 100)
	if _, err := l.Buy("ETHUSDT", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := l.SetTrigger("ETHUSDT", ledger.TriggerStopLoss, decimal.NewFromInt(90)); err != nil {
		t.Fatalf("SetTrigger failed: %v", err)
	}

	oracle.SetPrice("ETHUSDT", 89)
	m.Tick()

	if spy.count() != 1 || !strings.Contains(spy.last(), "Stop-Loss") {
		t.Fatalf("Expected stop-loss notification, got %v", spy.messages)
	}
	if l.Holds("ETHUSDT") {
		t.Error("Position not removed after stop-loss exit")
	}
	// 5 units sold at $89: balance 500 + 445.
	if !l.Balance().Equal(decimal.NewFromInt(945)) {
		t.Errorf("Expected balance 945, got %s", l.Balance())
	}
}

func TestTick_TakeProfitPrecedesStopLoss(t *testing.T) {
	// Inverted triggers (SL above TP) so one price matches both. The
	// evaluation order must deterministically pick take-profit.
	m, l, oracle, spy := newTestMonitor(t, 1000)
	l.RegisterSession(42)

	oracle.SetPrice("BTCUSDT", 100)
	if _, err := l.Buy("BTCUSDT", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	l.SetTrigger("BTCUSDT", ledger.TriggerTakeProfit, decimal.NewFromInt(100))
	l.SetTrigger("BTCUSDT", ledger.TriggerStopLoss, decimal.NewFromInt(150))

	m.Tick()

	if spy.count() != 1 {
		t.Fatalf("Expected exactly 1 notification, got %d", spy.count())
	}
	if !strings.Contains(spy.last(), "Take-Profit") {
		t.Errorf("Expected take-profit to win, got: %s", spy.last())
	}
}

func TestTick_UnavailablePriceSkipsSymbol(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	l.RegisterSession(42)

	oracle.SetPrice("BTCUSDT", 100)
	if _, err := l.Buy("BTCUSDT", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	l.SetTrigger("BTCUSDT", ledger.TriggerTakeProfit, decimal.NewFromInt(90))
	l.AddAlert("BTCUSDT", decimal.NewFromInt(50), models.DirectionAbove)

	// Price feed goes dark: the tick must skip silently, not fire or error.
	oracle.Unset("BTCUSDT")
	m.Tick()

	if spy.count() != 0 {
		t.Errorf("Expected no notifications while price unavailable, got %d", spy.count())
	}
	if !l.Holds("BTCUSDT") || len(l.Alerts()) != 1 {
		t.Error("State mutated while price unavailable")
	}

	// Feed returns: both the alert and the trigger fire on the next tick.
	oracle.SetPrice("BTCUSDT", 100)
	m.Tick()

	if spy.count() != 2 {
		t.Errorf("Expected 2 notifications after feed recovery, got %d", spy.count())
	}
	if l.Holds("BTCUSDT") || len(l.Alerts()) != 0 {
		t.Error("Expected trigger and alert to fire after recovery")
	}
}

func TestTick_PositionWithoutTriggersUntouched(t *testing.T) {
	m, l, oracle, spy := newTestMonitor(t, 1000)
	l.RegisterSession(42)

	oracle.SetPrice("BTCUSDT", 100)
	if _, err := l.Buy("BTCUSDT", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	oracle.SetPrice("BTCUSDT", 1000000)
	m.Tick()

	if spy.count() != 0 {
		t.Error("Triggerless position produced a notification")
	}
	if !l.Holds("BTCUSDT") {
		t.Error("Triggerless position was sold")
	}
}
