package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demo_trader/internal/bot"
	"demo_trader/internal/config"
	"demo_trader/internal/ledger"
	"demo_trader/internal/logger"
	"demo_trader/internal/market"
	"demo_trader/internal/monitor"
	"demo_trader/internal/storage"
	"demo_trader/internal/telegram"

	"github.com/shopspring/decimal"
)

const LogFile = "trader.log"
const VersionFile = "version.latest"

// main is the entry point of the application.
func main() {
	// 1. Initialization
	// Load configuration first to get logger settings
	cfg := config.Load()
	cfg.Version = readVersion()

	// Setup logging with configured values
	logger.Setup(LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	// Create a context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Setup Dependencies
	oracle := market.NewBinanceProvider(cfg.BinanceBaseURL)
	store := storage.NewStore(cfg.DataFile, decimal.NewFromFloat(cfg.InitialBalance))

	book, err := ledger.New(oracle, store)
	if err != nil {
		log.Fatalf("CRITICAL: Could not load account: %v", err)
	}

	engine := bot.NewEngine(book, oracle, cfg.QuoteCurrency)
	tg := telegram.NewClient(cfg.TelegramBotToken)
	mon := monitor.New(book, oracle, tg.Notify, time.Duration(cfg.CheckIntervalSec)*time.Second)

	// 3. Start Telegram Listener (Background)
	go tg.Listen(ctx, cfg.TelegramChatID, engine.HandleMessage, engine.HandleCallback)

	// 4. Setup Signal Handling (Graceful Shutdown)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("⚠️ Shutting Down: System signal received.")
		cancel()
	}()

	log.Printf("Demo Trader %s Initialized", cfg.Version)
	log.Printf("Trigger Check Interval: %d sec", cfg.CheckIntervalSec)

	// 5. Main Loop: the trigger monitor ticks until the context is cancelled.
	mon.Run(ctx)
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return string(version)
}
