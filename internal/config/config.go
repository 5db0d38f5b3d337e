package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Loaded once at startup; read-only
// afterwards.
type Config struct {
	Version string

	TelegramBotToken string
	TelegramChatID   int64 // the only chat allowed to drive the bot

	BinanceBaseURL string
	QuoteCurrency  string // tradable universe suffix, e.g. "USDT"

	DataFile         string
	InitialBalance   float64
	CheckIntervalSec int

	LogLevel      string
	MaxLogSizeMB  int64
	MaxLogBackups int
}

// Load initializes the configuration.
// It tries to read a .env file and checks for necessary environment variables.
func Load() *Config {
	// Load .env variables into the process environment
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	// Define which variables are critical and confidential.
	requiredSecretVars := map[string]bool{
		"TELEGRAM_BOT_TOKEN": true,
		"TELEGRAM_CHAT_ID":   true,
	}

	// 1. Check for missing required variables (in actual environment)
	var missing []string
	for key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	// 2. Print variables defined in .env file, masking secrets.
	envMap, err := godotenv.Read()
	if err == nil {
		log.Println("--- .env File Variables ---")
		for key, val := range envMap {
			if requiredSecretVars[key] {
				// Mask secret values: show only last 4 chars
				masked := "***"
				if len(val) > 4 {
					masked = "***" + val[len(val)-4:]
				}
				log.Printf("%s=%s", key, masked)
			} else {
				log.Printf("%s=%s", key, val)
			}
		}
		log.Println("---------------------------")
	}

	return &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),

		BinanceBaseURL: getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		QuoteCurrency:  getEnv("QUOTE_CURRENCY", "USDT"),

		DataFile:         getEnv("DATA_FILE", "demo_account.json"),
		InitialBalance:   getEnvAsFloat64("INITIAL_BALANCE", 100000.0),
		CheckIntervalSec: int(getEnvAsInt64("CHECK_INTERVAL_SEC", 30)),

		LogLevel:      getEnv("WATCHER_LOG_LEVEL", "INFO"),
		MaxLogSizeMB:  getEnvAsInt64("MAX_LOG_SIZE_MB", 5),
		MaxLogBackups: int(getEnvAsInt64("MAX_LOG_BACKUPS", 3)),
	}
}

// Helper to get string env with default
func getEnv(key, fallback string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return fallback
}
