package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// AI refiner
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	// Engine tunables
	SafetyBufferPercent     float64
	FeasibilityCeiling      float64
	HistoryMonths           int
	RecurringWindowMonths   int
	RecurringMinOccurrences int
	RecurringMaxCV          float64

	// Caching
	InsightCacheSize int
	InsightCacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cuentas.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cuentas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_imported"),

		AIBaseURL: getEnv("AI_BASE_URL", ""),
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "claude-sonnet-4-20250514"),
		AITimeout: getEnvDuration("AI_TIMEOUT", 30*time.Second),

		SafetyBufferPercent:     getEnvFloat("SAFETY_BUFFER_PERCENT", 10),
		FeasibilityCeiling:      getEnvFloat("FEASIBILITY_CEILING", 0.85),
		HistoryMonths:           getEnvInt("HISTORY_MONTHS", 12),
		RecurringWindowMonths:   getEnvInt("RECURRING_WINDOW_MONTHS", 6),
		RecurringMinOccurrences: getEnvInt("RECURRING_MIN_OCCURRENCES", 3),
		RecurringMaxCV:          getEnvFloat("RECURRING_MAX_CV", 0.2),

		InsightCacheSize: getEnvInt("INSIGHT_CACHE_SIZE", 1000),
		InsightCacheTTL:  getEnvDuration("INSIGHT_CACHE_TTL", 24*time.Hour),
	}

	return cfg
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

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
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

	// Validate AI refiner configuration if enabled
	if c.AIBaseURL != "" {
		if parsedURL, err := url.Parse(c.AIBaseURL); err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid AI base URL '%s'", c.AIBaseURL))
		}
		if c.AIAPIKey == "" {
			errors = append(errors, "AI API key cannot be empty when AI base URL is provided")
		}
		if c.AIModel == "" {
			errors = append(errors, "AI model cannot be empty when AI base URL is provided")
		}
		if c.AITimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be at least 1 second", c.AITimeout))
		} else if c.AITimeout > 5*time.Minute {
			errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be at most 5 minutes", c.AITimeout))
		}
	}

	// Validate engine tunables
	if c.SafetyBufferPercent < 0 || c.SafetyBufferPercent > 100 {
		errors = append(errors, fmt.Sprintf("invalid safety buffer percent %v: must be between 0 and 100", c.SafetyBufferPercent))
	}
	if c.FeasibilityCeiling <= 0 || c.FeasibilityCeiling > 1 {
		errors = append(errors, fmt.Sprintf("invalid feasibility ceiling %v: must be in (0, 1]", c.FeasibilityCeiling))
	}
	if c.HistoryMonths < 1 || c.HistoryMonths > 60 {
		errors = append(errors, fmt.Sprintf("invalid history months %d: must be between 1 and 60", c.HistoryMonths))
	}
	if c.RecurringWindowMonths < 1 || c.RecurringWindowMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid recurring window %d: must be between 1 and 24 months", c.RecurringWindowMonths))
	}
	if c.RecurringMinOccurrences < 2 {
		errors = append(errors, fmt.Sprintf("invalid recurring minimum occurrences %d: must be at least 2", c.RecurringMinOccurrences))
	}
	if c.RecurringMaxCV <= 0 || c.RecurringMaxCV >= 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring amount variation threshold %v: must be in (0, 1)", c.RecurringMaxCV))
	}

	// Validate cache configuration
	if c.InsightCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid insight cache size %d: must be at least 1", c.InsightCacheSize))
	}
	if c.InsightCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid insight cache TTL %v: must be at least 1 minute", c.InsightCacheTTL))
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
