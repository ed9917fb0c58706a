package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/jwtly10/tradedsl/internal/backtest"
)

// Config holds environment-driven settings for the CLI and API server.
type Config struct {
	// Backtest defaults
	InitialCapital float64
	Slippage       float64
	Commission     float64

	// Inputs
	DataCSV      string
	StrategyFile string
	Rules        string

	// Persistence; empty disables it
	DBPath string

	// HTTP
	Port string

	// OANDA, used when no CSV is given
	OandaAccountID   string
	OandaAPIKey      string
	OandaAPIURL      string
	OandaInstrument  string
	OandaGranularity string
	LookbackDays     int

	// Debug
	DebugDump bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		InitialCapital:   getEnvFloat("INITIAL_CAPITAL", backtest.DefaultInitialCapital),
		Slippage:         getEnvFloat("SLIPPAGE", 0),
		Commission:       getEnvFloat("COMMISSION", 0),
		DataCSV:          os.Getenv("DATA_CSV"),
		StrategyFile:     os.Getenv("STRATEGY_FILE"),
		Rules:            os.Getenv("RULES"),
		DBPath:           os.Getenv("DB_PATH"),
		Port:             getEnv("PORT", "8080"),
		OandaAccountID:   os.Getenv("OANDA_ACCOUNT_ID"),
		OandaAPIKey:      os.Getenv("OANDA_API_KEY"),
		OandaAPIURL:      os.Getenv("OANDA_API_URL"),
		OandaInstrument:  getEnv("OANDA_INSTRUMENT", "NAS100_USD"),
		OandaGranularity: getEnv("OANDA_GRANULARITY", "M15"),
		LookbackDays:     getEnvInt("LOOKBACK_DAYS", 30),
		DebugDump:        getEnv("DEBUG_DUMP", "0") == "1",
	}

	if err := cfg.Backtest().Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Backtest returns the engine configuration from the environment.
func (c *Config) Backtest() backtest.Config {
	return backtest.Config{
		InitialCapital: c.InitialCapital,
		Slippage:       c.Slippage,
		Commission:     c.Commission,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
