package bot

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"demo_trader/internal/ledger"
	"demo_trader/internal/market"
	"demo_trader/internal/models"
	"demo_trader/internal/telegram"

	"github.com/shopspring/decimal"
)

// step is the conversation position. Each multi-step flow is strictly
// linear: a failed validation re-prompts without advancing, a terminal step
// returns to idle whether it succeeded or not, and "back" resets from
// anywhere.
type step int

const (
	stepIdle step = iota
	stepPriceSymbol
	stepTradeDirection
	stepTradeSymbol
	stepTradeAmount
	stepAlertInput
	stepTpSlKind
	stepTpSlSymbol
	stepTpSlPrice
)

// session is the per-chat scratch state. All fields are cleared whenever
// the conversation returns to idle.
type session struct {
	step           step
	tradeDirection string // "buy" or "sell"
	symbol         string
	tpSlKind       ledger.TriggerKind
}

func (s *session) reset() {
	*s = session{}
}

// Menu callback identifiers.
const (
	cbBack      = "back"
	cbPrice     = "check_price"
	cbPortfolio = "portfolio"
	cbTrade     = "trade"
	cbAlert     = "set_alert"
	cbTpSl      = "set_tp_sl"
)

// Engine drives the conversation: it collects multi-step input per chat
// and, once a sequence is complete, invokes exactly one ledger mutation.
type Engine struct {
	ledger *ledger.Ledger
	oracle market.PriceOracle
	quote  string // universe quote currency, e.g. "USDT"

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewEngine returns a conversation engine over the given ledger.
func NewEngine(l *ledger.Ledger, oracle market.PriceOracle, quoteCurrency string) *Engine {
	return &Engine{
		ledger:   l,
		oracle:   oracle,
		quote:    quoteCurrency,
		sessions: make(map[int64]*session),
	}
}

// MainMenu is the top-level action keyboard.
func MainMenu() [][]telegram.Button {
	return [][]telegram.Button{
		{{Text: "🔍 Check Price", CallbackData: cbPrice}},
		{{Text: "📊 View Portfolio", CallbackData: cbPortfolio}},
		{{Text: "💱 Buy / Sell", CallbackData: cbTrade}},
		{{Text: "🔔 Set Price Alert", CallbackData: cbAlert}},
		{{Text: "⚙️ Set TP/SL", CallbackData: cbTpSl}},
	}
}

// BackMenu is the universal escape hatch shown on every non-idle reply.
func BackMenu() [][]telegram.Button {
	return [][]telegram.Button{
		{{Text: "⬅️ Back to Main Menu", CallbackData: cbBack}},
	}
}

func menuReply(text string) telegram.Reply {
	return telegram.Reply{Text: text, Buttons: MainMenu()}
}

func backReply(text string) telegram.Reply {
	return telegram.Reply{Text: text, Buttons: BackMenu()}
}

func (e *Engine) session(chatID int64) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[chatID]
	if !ok {
		s = &session{}
		e.sessions[chatID] = s
	}
	return s
}

// HandleCallback processes a menu selection. Any selection is a new
// top-level command: an in-flight sequence is abandoned first.
func (e *Engine) HandleCallback(chatID int64, data string) telegram.Reply {
	s := e.session(chatID)
	s.reset()

	switch data {
	case cbBack:
		return menuReply("🌟 *Welcome back!* Pick an action:")
	case cbPrice:
		s.step = stepPriceSymbol
		return backReply("🔍 *Enter a coin symbol* (e.g. BTCUSDT):")
	case cbPortfolio:
		return backReply(formatPortfolio(e.ledger.Snapshot()))
	case cbTrade:
		s.step = stepTradeDirection
		return backReply("💱 *Pick an action:* type *'buy'* or *'sell'*.")
	case cbAlert:
		s.step = stepAlertInput
		return backReply("🔔 *Set an alert:* enter symbol, price, direction (above/below).\nExample: BTCUSDT 60000 above")
	case cbTpSl:
		s.step = stepTpSlKind
		return backReply("⚙️ *Set TP/SL:* type *'tp'* for Take-Profit or *'sl'* for Stop-Loss.")
	default:
		log.Printf("Unknown callback data: %q", data)
		return menuReply("Pick an action:")
	}
}

// HandleMessage processes free text against the chat's current step.
func (e *Engine) HandleMessage(chatID int64, text string) telegram.Reply {
	text = strings.TrimSpace(text)
	s := e.session(chatID)

	switch s.step {
	case stepIdle:
		return e.handleIdle(chatID, text)
	case stepPriceSymbol:
		return e.handlePriceSymbol(s, text)
	case stepTradeDirection:
		return e.handleTradeDirection(s, text)
	case stepTradeSymbol:
		return e.handleTradeSymbol(s, text)
	case stepTradeAmount:
		return e.handleTradeAmount(s, text)
	case stepAlertInput:
		return e.handleAlertInput(s, text)
	case stepTpSlKind:
		return e.handleTpSlKind(s, text)
	case stepTpSlSymbol:
		return e.handleTpSlSymbol(s, text)
	case stepTpSlPrice:
		return e.handleTpSlPrice(s, text)
	default:
		s.reset()
		return menuReply("Pick an action:")
	}
}

func (e *Engine) handleIdle(chatID int64, text string) telegram.Reply {
	if text == "/start" {
		if err := e.ledger.RegisterSession(chatID); err != nil {
			log.Printf("RegisterSession failed: %v", err)
			return menuReply("⚠️ *Internal error.* Please try again.")
		}
		return menuReply("🌟 *Welcome to the Demo Trading Bot!* 🌟\n\nPick an action below to get started:")
	}
	return menuReply("Pick an action from the menu:")
}

func (e *Engine) handlePriceSymbol(s *session, text string) telegram.Reply {
	defer s.reset() // terminal step either way

	symbol := market.NormalizeSymbol(text)
	price, err := e.ledger.Quote(symbol)
	if err != nil {
		return backReply("❌ *Coin not found.* Try again.")
	}
	return backReply(fmt.Sprintf("🔍 *%s price:* $%s", symbol, price.StringFixed(4)))
}

func (e *Engine) handleTradeDirection(s *session, text string) telegram.Reply {
	direction := strings.ToLower(text)
	if direction != "buy" && direction != "sell" {
		return backReply("❌ *Type 'buy' or 'sell' only.*")
	}

	s.tradeDirection = direction
	s.step = stepTradeSymbol

	if direction == "buy" {
		listing := ""
		if symbols, err := e.oracle.ListSymbols(e.quote); err == nil && len(symbols) > 0 {
			shown := symbols
			if len(shown) > 20 {
				shown = shown[:20]
			}
			listing = fmt.Sprintf("📜 *Available coins (%s pairs):*\n%s\n... (and many more)\n\n", e.quote, strings.Join(shown, "\n"))
		}
		return backReply(listing + "*Enter a coin symbol* (e.g. BTCUSDT):")
	}

	return backReply(fmt.Sprintf("📜 *Your holdings:*\n%s\n\n*Enter a coin symbol* from your holdings:", e.holdingsList()))
}

func (e *Engine) handleTradeSymbol(s *session, text string) telegram.Reply {
	symbol := market.NormalizeSymbol(text)

	if s.tradeDirection == "buy" {
		symbols, err := e.oracle.ListSymbols(e.quote)
		if err != nil {
			// Transient universe failure: stay on this step, never fatal.
			return backReply("⚠️ *Could not verify symbol right now.* Try again.")
		}
		if !contains(symbols, symbol) {
			return backReply("❌ *Coin not found.* Try again.")
		}
	} else if !e.ledger.Holds(symbol) {
		return backReply("❌ *Coin not in your holdings.* Try again.")
	}

	s.symbol = symbol
	s.step = stepTradeAmount

	if s.tradeDirection == "sell" {
		return backReply("💵 *Enter a $ amount*, or type *'all'* to sell everything:")
	}
	return backReply("💵 *Enter a $ amount* to buy:")
}

func (e *Engine) handleTradeAmount(s *session, text string) telegram.Reply {
	direction, symbol := s.tradeDirection, s.symbol
	s.reset() // terminal step either way

	if direction == "sell" && strings.EqualFold(text, "all") {
		res, err := e.ledger.SellAll(symbol)
		if err != nil {
			return backReply(errorText(err))
		}
		return backReply(fmt.Sprintf("✅ *Sold ALL %s %s* for $%s",
			res.CoinAmount.StringFixed(4), symbol, res.UsdAmount.StringFixed(4)))
	}

	usd, err := decimal.NewFromString(text)
	if err != nil || !usd.IsPositive() {
		return backReply("❌ *Invalid amount.* Enter a positive $ value.")
	}

	var res *ledger.TradeResult
	if direction == "buy" {
		res, err = e.ledger.Buy(symbol, usd)
	} else {
		res, err = e.ledger.SellPartial(symbol, usd)
	}
	if err != nil {
		return backReply(errorText(err))
	}

	verb := "Bought"
	if direction == "sell" {
		verb = "Sold"
	}
	return backReply(fmt.Sprintf("✅ *%s %s %s* for $%s",
		verb, res.CoinAmount.StringFixed(4), symbol, res.UsdAmount.StringFixed(4)))
}

func (e *Engine) handleAlertInput(s *session, text string) telegram.Reply {
	defer s.reset() // single-line step, terminal either way

	parts := strings.Fields(text)
	if len(parts) != 3 {
		return backReply("❌ *Wrong format.* Example: BTCUSDT 60000 above")
	}

	symbol := market.NormalizeSymbol(parts[0])
	target, err := decimal.NewFromString(parts[1])
	direction := strings.ToLower(parts[2])

	if err != nil || !target.IsPositive() ||
		(direction != models.DirectionAbove && direction != models.DirectionBelow) {
		return backReply("❌ *Wrong format.* Example: BTCUSDT 60000 above")
	}

	if err := e.ledger.AddAlert(symbol, target, direction); err != nil {
		return backReply(errorText(err))
	}

	return backReply(fmt.Sprintf("🔔 *Alert set for %s* %s $%s", symbol, direction, target.StringFixed(4)))
}

func (e *Engine) handleTpSlKind(s *session, text string) telegram.Reply {
	kind := strings.ToLower(text)
	if kind != "tp" && kind != "sl" {
		return backReply("❌ *Type 'tp' or 'sl' only.*")
	}

	s.tpSlKind = ledger.TriggerKind(kind)
	s.step = stepTpSlSymbol
	return backReply(fmt.Sprintf("📜 *Your holdings:*\n%s\n\n*Enter a coin symbol* (e.g. BTCUSDT):", e.holdingsList()))
}

func (e *Engine) handleTpSlSymbol(s *session, text string) telegram.Reply {
	symbol := market.NormalizeSymbol(text)
	if !e.ledger.Holds(symbol) {
		return backReply("❌ *Coin not in your holdings.* Try again.")
	}

	s.symbol = symbol
	s.step = stepTpSlPrice
	return backReply("💲 *Enter the target price* (or 0 to cancel the trigger):")
}

func (e *Engine) handleTpSlPrice(s *session, text string) telegram.Reply {
	kind, symbol := s.tpSlKind, s.symbol
	s.reset() // terminal step either way

	target, err := decimal.NewFromString(text)
	if err != nil {
		return backReply("❌ *Invalid input.*")
	}

	if err := e.ledger.SetTrigger(symbol, kind, target); err != nil {
		return backReply(errorText(err))
	}

	label := "Take-Profit"
	if kind == ledger.TriggerStopLoss {
		label = "Stop-Loss"
	}
	if target.IsPositive() {
		return backReply(fmt.Sprintf("✅ *%s set for %s* at $%s", label, symbol, target.StringFixed(4)))
	}
	return backReply(fmt.Sprintf("✅ *%s cancelled for %s*", label, symbol))
}

// holdingsList renders the held symbols for a prompt, sorted for stable output.
func (e *Engine) holdingsList() string {
	holdings := e.ledger.Holdings()
	if len(holdings) == 0 {
		return "No holdings."
	}
	symbols := make([]string, 0, len(holdings))
	for sym := range holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return strings.Join(symbols, "\n")
}

// errorText translates ledger errors into reply text. Every user-facing
// flow ends in a message; nothing terminates the conversation silently.
func errorText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "❌ *Insufficient balance.*"
	case errors.Is(err, ledger.ErrInsufficientHoldings):
		return "❌ *Insufficient holdings.*"
	case errors.Is(err, ledger.ErrNoSuchPosition):
		return "❌ *You don't hold that coin.*"
	case errors.Is(err, ledger.ErrPriceUnavailable):
		return "❌ *Could not fetch the price.* Try again."
	case errors.Is(err, ledger.ErrPersistence):
		return "⚠️ *Internal error: the change was not saved.* Please try again."
	default:
		log.Printf("Unexpected ledger error: %v", err)
		return "⚠️ *Internal error.* Please try again."
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
