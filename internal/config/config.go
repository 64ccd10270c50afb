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

	"github.com/shopspring/decimal"

	"fintrack/internal/budget"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	PostgresURL  string

	// AMQP (optional for the CLI and server, required by the alert worker)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets alert log (optional)
	GoogleSpreadsheetID   string
	GoogleAlertsSheetName string

	// Alert tiers
	AlertInfoRatio    decimal.Decimal
	AlertWarningRatio decimal.Decimal
	AlertDangerRatio  decimal.Decimal

	// Worker
	AlertSweepInterval time.Duration
	AlertDedupTTL      time.Duration

	// Anomaly detector
	AnomalyMethod      string
	AnomalySensitivity float64

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends       = []string{"memory", "sqlite", "postgres"}
	validAnomalyMethods = []string{"zscore", "iqr"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
	validLogFormats     = []string{"text", "json"}
)

func Load() *Config {
	defaults := budget.DefaultThresholds()
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleAlertsSheetName: getEnv("GOOGLE_ALERTS_SHEET_NAME", "Alerts"),

		AlertInfoRatio:    getEnvDecimal("ALERT_INFO_RATIO", defaults.Info),
		AlertWarningRatio: getEnvDecimal("ALERT_WARNING_RATIO", defaults.Warning),
		AlertDangerRatio:  getEnvDecimal("ALERT_DANGER_RATIO", defaults.Danger),

		AlertSweepInterval: getEnvDuration("ALERT_SWEEP_INTERVAL", 15*time.Minute),
		AlertDedupTTL:      getEnvDuration("ALERT_DEDUP_TTL", 24*time.Hour),

		AnomalyMethod:      strings.ToLower(getEnv("ANOMALY_METHOD", "zscore")),
		AnomalySensitivity: getEnvFloat("ANOMALY_SENSITIVITY", 2.0),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Thresholds returns the configured alert tiers.
func (c *Config) Thresholds() budget.Thresholds {
	return budget.Thresholds{
		Info:    c.AlertInfoRatio,
		Warning: c.AlertWarningRatio,
		Danger:  c.AlertDangerRatio,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
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

	// Validate alert tiers
	if err := c.Thresholds().Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid alert thresholds: %v", err))
	}

	// Validate worker configuration
	if c.AlertSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid alert sweep interval %v: must be at least 1 second", c.AlertSweepInterval))
	} else if c.AlertSweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid alert sweep interval %v: must be at most 24 hours", c.AlertSweepInterval))
	}
	if c.AlertDedupTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid alert dedup TTL %v: must not be negative", c.AlertDedupTTL))
	}

	// Validate anomaly detector
	if !slices.Contains(validAnomalyMethods, c.AnomalyMethod) {
		errors = append(errors, fmt.Sprintf("invalid anomaly method '%s': must be one of %v", c.AnomalyMethod, validAnomalyMethods))
	}
	if c.AnomalySensitivity <= 0 {
		errors = append(errors, fmt.Sprintf("invalid anomaly sensitivity %v: must be positive", c.AnomalySensitivity))
	}

	// Validate logging
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
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
