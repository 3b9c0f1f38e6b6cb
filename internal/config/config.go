package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamo"
)

// Backends lists the accepted DATA_BACKEND values.
var Backends = []string{BackendMemory, BackendSQLite, BackendBolt, BackendPostgres, BackendDynamo}

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Storage
	DataBackend    string
	DataDirectory  string
	SQLiteDBPath   string
	BoltDBPath     string
	DatabaseURL    string
	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	JWTSecret     string
	SessionTTL    time.Duration
	SecureCookies bool

	// Cache
	CacheBackend string
	CacheSize    int
	CacheTTL     time.Duration

	RateLimitPerMinute int
	CurrencySymbol     string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Telegram alerts
	TelegramBotToken string
	TelegramChatID   int64
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:    getEnv("DATA_BACKEND", BackendMemory),
		DataDirectory:  getEnv("DATA_DIR", "data"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/spendsmart.db"),
		BoltDBPath:     getEnv("BOLT_DB_PATH", "./data/spendsmart.bolt"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DynamoTable:    getEnv("DYNAMO_TABLE", "spendsmart"),
		DynamoEndpoint: getEnv("DYNAMO_ENDPOINT", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendsmart"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),

		SecureCookies: strings.EqualFold(getEnv("SECURE_COOKIES", "false"), "true"),

		CacheBackend: getEnv("CACHE_BACKEND", "lru"),
		CacheSize:    getEnvInt("CACHE_SIZE", 256),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CurrencySymbol:     getEnv("CURRENCY_SYMBOL", "₹"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
	}
}

// AuthEnabled reports whether login is required for the ledger endpoints.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// SheetsEnabled reports whether the worker mirrors transactions to a sheet.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case BackendBolt:
		if c.BoltDBPath == "" {
			errors = append(errors, "BoltDB path cannot be empty when using bolt backend")
		} else if msg := ensureDir(c.BoltDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	case BackendDynamo:
		if c.DynamoTable == "" {
			errors = append(errors, "DYNAMO_TABLE is required when using dynamo backend")
		}
		if c.AWSRegion == "" {
			errors = append(errors, "AWS_REGION is required when using dynamo backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JWTSecret != "" {
		if len(c.JWTSecret) < 16 {
			errors = append(errors, "JWT secret must be at least 16 characters")
		}
		if c.SessionTTL < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
		}
	}

	if c.CacheBackend != "lru" && c.CacheBackend != "ristretto" {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be 'lru' or 'ristretto'", c.CacheBackend))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided with a spreadsheet")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		errors = append(errors, "TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ensureDir creates the parent directory of path, returning a problem
// description when that fails.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create database directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
