package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort  int
	LogLevel  slog.Level
	LogFormat string

	// Exchange selects the upstream source: "binance" or "generator".
	Exchange          string
	BinanceBaseURL    string
	UpstreamRateLimit float64
	GeneratorSymbols  []string

	TickerTTL time.Duration
	CandleTTL time.Duration

	// RedisAddr empty means the in-memory cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

var defaultGeneratorSymbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "DOGE/USDT", "TON/USDT"}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() Config {
	_ = godotenv.Load() // ignore error if .env absent

	return Config{
		HTTPPort:          getEnvAsInt("SERVER_PORT", 8080),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		Exchange:          getEnv("EXCHANGE", "binance"),
		BinanceBaseURL:    getEnv("BINANCE_BASE_URL", ""),
		UpstreamRateLimit: getEnvAsFloat("UPSTREAM_RATE_LIMIT", 10),
		GeneratorSymbols:  defaultGeneratorSymbols,
		TickerTTL:         getEnvAsDuration("TICKER_TTL", 5*time.Second),
		CandleTTL:         getEnvAsDuration("CANDLE_TTL", 60*time.Minute),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// --- helpers ---

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
