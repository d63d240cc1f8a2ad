package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Exchange ExchangeConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Notifier NotifierConfig
	Trading  TradingConfig
}

// ExchangeConfig holds the market-data ingress endpoints.
type ExchangeConfig struct {
	StreamURL          string
	RESTBaseURL         string
	RESTWeightPerMinute int
	UniverseFile        string
}

// DatabaseConfig holds Postgres/TimescaleDB connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// RedisConfig holds Snapshot Cache connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// NotifierConfig holds the outbound-notifier and notification-bus settings.
type NotifierConfig struct {
	WebhookURL string
	NATSURL    string
	Subject    string
}

// TradingConfig holds every enumerated threshold and timing knob from §6.
type TradingConfig struct {
	ImbalanceEntryThreshold      float64
	MinLargeTrades               int
	VolumeConfirmationMultiplier float64
	LargeTradePercentile         float64
	LargeTradeFloorUSD           float64
	PersistenceEntrySamples      int
	ImbalanceReversalThreshold   float64
	PersistenceReversalSamples   int
	MinHoldSeconds               float64
	PriorityHigh                 float64
	PriorityMedium               float64
	MaxStopPct                   float64
	MinTPPct                     float64
	MinRR                        float64
	ATRPeriod                    int
	WorkingRangeMultiplier       float64
	OrderbookDepthAnalysis       int
	BinSizePct                   float64
	FastTickIntervalMS           int
	CacheSyncIntervalSeconds     int
	UniverseRescanIntervalHours  int
}

// LoadFromEnv loads configuration from environment variables, falling back
// to the documented defaults from §6 when a variable is unset.
func LoadFromEnv() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Exchange: ExchangeConfig{
			StreamURL:           getEnvOrDefault("EXCHANGE_STREAM_URL", "wss://fstream.example.com/stream"),
			RESTBaseURL:         getEnvOrDefault("EXCHANGE_REST_URL", "https://fapi.example.com"),
			RESTWeightPerMinute: getEnvInt("EXCHANGE_REST_WEIGHT_PER_MINUTE", 2400),
			UniverseFile:        getEnvOrDefault("UNIVERSE_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Name:     getEnvOrDefault("DB_NAME", "perpsignal"),
			User:     getEnvOrDefault("DB_USER", "perpsignal"),
			Password: getEnvOrDefault("DB_PASSWORD", "perpsignal"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		},
		Notifier: NotifierConfig{
			WebhookURL: getEnvOrDefault("NOTIFIER_WEBHOOK_URL", ""),
			NATSURL:    getEnvOrDefault("NOTIFIER_NATS_URL", "nats://localhost:4222"),
			Subject:    getEnvOrDefault("NOTIFIER_SUBJECT", "signals.notify"),
		},
		Trading: TradingConfig{
			ImbalanceEntryThreshold:      getEnvFloat("IMBALANCE_ENTRY_THRESHOLD", 0.15),
			MinLargeTrades:               getEnvInt("MIN_LARGE_TRADES", 2),
			VolumeConfirmationMultiplier: getEnvFloat("VOLUME_CONFIRMATION_MULTIPLIER", 1.5),
			LargeTradePercentile:         getEnvFloat("LARGE_TRADE_PERCENTILE", 99),
			LargeTradeFloorUSD:           getEnvFloat("LARGE_TRADE_FLOOR_USD", 10000),
			PersistenceEntrySamples:      getEnvInt("PERSISTENCE_ENTRY_SAMPLES", 50),
			ImbalanceReversalThreshold:   getEnvFloat("IMBALANCE_REVERSAL_THRESHOLD", 0.4),
			PersistenceReversalSamples:   getEnvInt("PERSISTENCE_REVERSAL_SAMPLES", 75), // corpus also shows 50; 75 adopted, see DESIGN.md
			MinHoldSeconds:               getEnvFloat("MIN_HOLD_SECONDS", 30),
			PriorityHigh:                 getEnvFloat("PRIORITY_HIGH", 0.25),
			PriorityMedium:               getEnvFloat("PRIORITY_MEDIUM", 0.20),
			MaxStopPct:                   getEnvFloat("MAX_STOP_PCT", 1.5),
			MinTPPct:                     getEnvFloat("MIN_TP_PCT", 0.50),
			MinRR:                        getEnvFloat("MIN_RR", 0.8),
			ATRPeriod:                    getEnvInt("ATR_PERIOD", 14),
			WorkingRangeMultiplier:       getEnvFloat("WORKING_RANGE_MULTIPLIER", 3.0),
			OrderbookDepthAnalysis:       getEnvInt("ORDERBOOK_DEPTH_ANALYSIS", 500),
			BinSizePct:                   getEnvFloat("BIN_SIZE_PCT", 0.2),
			FastTickIntervalMS:           getEnvInt("FAST_TICK_INTERVAL_MS", 100),
			CacheSyncIntervalSeconds:     getEnvInt("CACHE_SYNC_INTERVAL_SECONDS", 5),
			UniverseRescanIntervalHours:  getEnvInt("UNIVERSE_RESCAN_INTERVAL_HOURS", 1),
		},
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
