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

	"finboard/internal/core"
)

type Config struct {
	// Dashboard HTTP server
	Port string

	// Development ledger API
	APIPort string

	// Remote ledger API consumed by the dashboard and the CLI
	APIBaseURL string
	APITimeout time.Duration
	APIRetries int

	// Presentation
	DefaultEmail   string
	CurrencySymbol string

	// Ledger storage
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// AMQP change events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Dashboard state cache
	StateCacheSize int
	StateCacheTTL  time.Duration

	RateLimitRPM int

	LogLevel  string
	LogFormat string

	// ConfigFile is the optional TOML, YAML or JSON file read under the environment.
	ConfigFile string
}

var (
	validBackends   = []string{"memory", "sqlite"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
)

// Load reads the configuration from the environment, falling back to
// CONFIG_FILE and then to defaults.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file; an empty path reads none.
func LoadFile(path string) (*Config, error) {
	src := source{}
	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{
		Port:    src.get("PORT", "8080"),
		APIPort: src.get("API_PORT", "8000"),

		APIBaseURL: strings.TrimRight(src.get("API_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout: src.duration("API_TIMEOUT", 10*time.Second),
		APIRetries: src.int("API_RETRIES", 1),

		DefaultEmail:   src.get("DEFAULT_EMAIL", ""),
		CurrencySymbol: src.get("CURRENCY_SYMBOL", core.DefaultCurrencySymbol),

		DataBackend:  src.get("DATA_BACKEND", "memory"),
		SQLiteDBPath: src.get("SQLITE_DB_PATH", "./data/finboard.db"),
		SeedFile:     src.get("SEED_FILE", ""),

		AMQPURL:      src.get("AMQP_URL", ""),
		AMQPExchange: src.get("AMQP_EXCHANGE", "finboard"),
		AMQPQueue:    src.get("AMQP_QUEUE", "ledger_changes"),

		StateCacheSize: src.int("STATE_CACHE_SIZE", 256),
		StateCacheTTL:  src.duration("STATE_CACHE_TTL", 5*time.Minute),

		RateLimitRPM: src.int("RATE_LIMIT_RPM", 120),

		LogLevel:  strings.ToLower(src.get("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(src.get("LOG_FORMAT", "text")),

		ConfigFile: path,
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	for name, port := range map[string]string{"port": c.Port, "API port": c.APIPort} {
		if p, err := strconv.Atoi(port); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a number", name, port))
		} else if p < 1 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, p))
		}
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
	}

	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 2m", c.APITimeout))
	}
	if c.APIRetries < 0 || c.APIRetries > 5 {
		errors = append(errors, fmt.Sprintf("invalid API retries %d: must be between 0 and 5", c.APIRetries))
	}

	if c.DefaultEmail != "" && !strings.Contains(c.DefaultEmail, "@") {
		errors = append(errors, fmt.Sprintf("invalid default email '%s'", c.DefaultEmail))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil && !os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("cannot read seed file '%s': %v", c.SeedFile, err))
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

	if c.StateCacheSize < 1 || c.StateCacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid state cache size %d: must be between 1 and 100000", c.StateCacheSize))
	}
	if c.StateCacheTTL < time.Second || c.StateCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid state cache TTL %v: must be between 1s and 24h", c.StateCacheTTL))
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) int(key string, defaultValue int) int {
	if i, err := strconv.Atoi(s.get(key, "")); err == nil {
		return i
	}
	return defaultValue
}

func (s source) duration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.get(key, "")); err == nil {
		return d
	}
	return defaultValue
}
