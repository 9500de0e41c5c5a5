package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"moneywave/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int32

	// NATS configuration
	NATSServers       string
	NATSSubjectPrefix string
	NATSStreamName    string
	LedgerTimeout     time.Duration

	// Ops server
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"

	// Settlement
	PayoutMultiplier decimal.Decimal

	// MoneyWave prize pool
	TaxRate               decimal.Decimal
	InterestRate          decimal.Decimal
	ExpectedAnnualRevenue int64
	InactiveBalanceDays   int
	AllocationTimezone    string

	// Game cache
	GameCacheSize int
	GameCacheTTL  time.Duration

	// Workers
	ExpiryCheckInterval time.Duration
	OutboxRetryInterval time.Duration
	OutboxBatchSize     int

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// Set by tests
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// Load reads a fresh configuration without touching the global instance
func Load() (*Config, error) {
	return load()
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// InactiveFor returns the inactivity threshold for reclaimable balances
func (c *Config) InactiveFor() time.Duration {
	return time.Duration(c.InactiveBalanceDays) * 24 * time.Hour
}

// Location resolves AllocationTimezone, falling back to UTC
func (c *Config) Location() *time.Location {
	if c.AllocationTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.AllocationTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func load() (*Config, error) {
	// A missing .env file is fine; the environment may already be populated
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DatabaseName:      os.Getenv("DATABASE_NAME"),
		DatabaseMaxConns:  10,
		NATSServers:       os.Getenv("NATS_SERVERS"),
		NATSSubjectPrefix: getEnvWithDefault("NATS_SUBJECT_PREFIX", "moneywave"),
		NATSStreamName:    getEnvWithDefault("NATS_STREAM_NAME", "MONEYWAVE_LEDGER"),
		LedgerTimeout:     5 * time.Second,

		MetricsAddr: getEnvWithDefault("METRICS_ADDR", ":9090"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvWithDefault("LOG_FORMAT", "text"),

		PayoutMultiplier: decimal.RequireFromString("1.8"),

		TaxRate:             decimal.RequireFromString("0.25"),
		InterestRate:        decimal.RequireFromString("0.03"),
		InactiveBalanceDays: 30,
		AllocationTimezone:  getEnvWithDefault("ALLOCATION_TIMEZONE", "UTC"),

		GameCacheSize: 1000,
		GameCacheTTL:  5 * time.Minute,

		ExpiryCheckInterval: 30 * time.Second,
		OutboxRetryInterval: 15 * time.Second,
		OutboxBatchSize:     100,

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	var errs []error
	parseInt64(&errs, "EXPECTED_ANNUAL_REVENUE", &config.ExpectedAnnualRevenue)
	parseInt(&errs, "INACTIVE_BALANCE_DAYS", &config.InactiveBalanceDays)
	parseInt(&errs, "GAME_CACHE_SIZE", &config.GameCacheSize)
	parseInt(&errs, "OUTBOX_BATCH_SIZE", &config.OutboxBatchSize)
	parseDecimal(&errs, "PAYOUT_MULTIPLIER", &config.PayoutMultiplier)
	parseDecimal(&errs, "TAX_RATE", &config.TaxRate)
	parseDecimal(&errs, "INTEREST_RATE", &config.InterestRate)
	parseDuration(&errs, "GAME_CACHE_TTL", &config.GameCacheTTL)
	parseDuration(&errs, "EXPIRY_CHECK_INTERVAL", &config.ExpiryCheckInterval)
	parseDuration(&errs, "OUTBOX_RETRY_INTERVAL", &config.OutboxRetryInterval)
	parseDuration(&errs, "LEDGER_TIMEOUT", &config.LedgerTimeout)
	if maxConns := os.Getenv("DATABASE_MAX_CONNS"); maxConns != "" {
		parsed, err := strconv.ParseInt(maxConns, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("DATABASE_MAX_CONNS: %w", err))
		} else {
			config.DatabaseMaxConns = int32(parsed)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field constraints. Connection settings are only required outside tests.
func (c *Config) Validate() error {
	if c.Environment != "test" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.NATSServers == "" {
			return fmt.Errorf("NATS_SERVERS is required")
		}
	}
	if !c.PayoutMultiplier.IsPositive() {
		return fmt.Errorf("PAYOUT_MULTIPLIER must be positive, got %s", c.PayoutMultiplier)
	}
	if c.TaxRate.IsNegative() || c.InterestRate.IsNegative() {
		return fmt.Errorf("TAX_RATE and INTEREST_RATE must not be negative")
	}
	if c.TaxRate.Add(c.InterestRate).GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("TAX_RATE + INTEREST_RATE must be below 1, got %s", c.TaxRate.Add(c.InterestRate))
	}
	if c.ExpectedAnnualRevenue < 0 {
		return fmt.Errorf("EXPECTED_ANNUAL_REVENUE must not be negative")
	}
	if c.InactiveBalanceDays < 1 {
		return fmt.Errorf("INACTIVE_BALANCE_DAYS must be at least 1")
	}
	if c.GameCacheSize < 1 {
		return fmt.Errorf("GAME_CACHE_SIZE must be at least 1")
	}
	if _, err := time.LoadLocation(c.AllocationTimezone); err != nil {
		return fmt.Errorf("invalid ALLOCATION_TIMEZONE %q: %w", c.AllocationTimezone, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64(errs *[]error, key string, target *int64) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*target = parsed
}

func parseInt(errs *[]error, key string, target *int) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*target = parsed
}

func parseDecimal(errs *[]error, key string, target *decimal.Decimal) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*target = parsed
}

func parseDuration(errs *[]error, key string, target *time.Duration) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*target = parsed
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig clears the global config instance and its sync.Once
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:           "test",
		LogLevel:              "debug",
		LogFormat:             "text",
		NATSSubjectPrefix:     "moneywave",
		NATSStreamName:        "MONEYWAVE_LEDGER",
		LedgerTimeout:         time.Second,
		PayoutMultiplier:      decimal.RequireFromString("1.8"),
		TaxRate:               decimal.RequireFromString("0.25"),
		InterestRate:          decimal.RequireFromString("0.03"),
		ExpectedAnnualRevenue: 3_650_000_000,
		InactiveBalanceDays:   30,
		AllocationTimezone:    "UTC",
		GameCacheSize:         100,
		GameCacheTTL:          time.Minute,
		ExpiryCheckInterval:   time.Second,
		OutboxRetryInterval:   time.Second,
		OutboxBatchSize:       10,
	}
}
