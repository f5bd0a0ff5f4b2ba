package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Market   MarketConfig
	Sources  SourcesConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Server   ServerConfig
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// MarketConfig holds exchange hours, job windows and the tracked universe
type MarketConfig struct {
	Timezone             string
	ReferenceRefreshAt   string
	OpeningWindowStart   string
	OpeningWindowEnd     string
	ClosingWindowStart   string
	ClosingWindowEnd     string
	SessionOpen          string
	SessionClose         string
	TrackingInterval     int
	Throttle             time.Duration
	ClosingFallbackDaily bool
	TrackedSymbols       []string
}

// SourcesConfig holds upstream data source configuration
type SourcesConfig struct {
	AlphaVantageKey string
	RequestTimeout  time.Duration
}

// RedisConfig holds the optional quote cache configuration.
// An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

// KafkaConfig holds the optional event stream configuration.
// Empty Brokers disable publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ServerConfig holds the admin HTTP server configuration
type ServerConfig struct {
	Enabled bool
	Host    string
	Port    string
}

// defaultSymbols is the bootstrap universe used by the reference refresh job
// when TRACKED_SYMBOLS is not set.
var defaultSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA",
	"JPM", "JNJ", "V", "PG", "UNH", "HD", "MA", "DIS",
	"NFLX", "ADBE", "CRM", "BAC", "XOM", "KO", "PFE",
	"INTC", "CSCO", "VZ", "T", "IBM", "WMT", "CVX", "MRK",
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "stan"),
			Password: getEnv("DB_PASSWORD", "stan123"),
			DBName:   getEnv("DB_NAME", "stan"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Market: MarketConfig{
			Timezone:             getEnv("MARKET_TIMEZONE", "America/New_York"),
			ReferenceRefreshAt:   getEnv("REFERENCE_REFRESH_AT", "09:00"),
			OpeningWindowStart:   getEnv("OPENING_WINDOW_START", "09:35"),
			OpeningWindowEnd:     getEnv("OPENING_WINDOW_END", "10:00"),
			ClosingWindowStart:   getEnv("CLOSING_WINDOW_START", "16:05"),
			ClosingWindowEnd:     getEnv("CLOSING_WINDOW_END", "18:00"),
			SessionOpen:          getEnv("SESSION_OPEN", "09:30"),
			SessionClose:         getEnv("SESSION_CLOSE", "16:00"),
			TrackingInterval:     getEnvInt("TRACKING_INTERVAL_MINUTES", 15),
			Throttle:             time.Duration(getEnvInt("THROTTLE_MS", 100)) * time.Millisecond,
			ClosingFallbackDaily: getEnvBool("CLOSING_FALLBACK_DAILY_BAR", true),
			TrackedSymbols:       getEnvList("TRACKED_SYMBOLS", defaultSymbols),
		},
		Sources: SourcesConfig{
			AlphaVantageKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
			RequestTimeout:  time.Duration(getEnvInt("SOURCE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			QuoteTTL: time.Duration(getEnvInt("REDIS_QUOTE_TTL_SECONDS", 60)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "market-events"),
		},
		Server: ServerConfig{
			Enabled: getEnvBool("SERVER_ENABLED", false),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnv("SERVER_PORT", "8080"),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
