package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

const (
	defaultHTTPAddr         = ":8000"
	defaultLedgerPath       = "user_info.json"
	defaultTransactionsPath = "transactions.json"
	defaultPriceCacheTTL    = 15 * time.Second
	defaultCoinGeckoURL     = "https://api.coingecko.com/api/v3"
	defaultCoinGeckoRate    = 30
	defaultCoinGeckoTimeout = 10 * time.Second
	defaultQuoteTTL         = 30 * time.Second
	defaultRewardCooldown   = 60 * time.Second
	defaultAMQPExchange     = "coinbot.trades"
)

// Config keeps the runtime configuration for the bot.
type Config struct {
	HTTPAddr  string
	Ledger    LedgerConfig
	Redis     RedisConfig
	CoinGecko CoinGeckoConfig
	Trade     TradeConfig
	Reward    RewardConfig
	AMQP      AMQPConfig
	Logging   LoggingConfig
}

// LedgerConfig selects where balances and transactions are persisted.
type LedgerConfig struct {
	Backend          string
	Path             string
	TransactionsPath string
	DatabaseURL      string
}

// RedisConfig enables the shared price cache and reward cooldown when Addr
// is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PriceTTL time.Duration
}

type CoinGeckoConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit int
	Timeout   time.Duration
}

type TradeConfig struct {
	QuoteTTL        time.Duration
	StartingBalance decimal.Decimal
}

type RewardConfig struct {
	Amount   decimal.Decimal
	Cooldown time.Duration
}

// AMQPConfig enables trade event publishing when URL is set.
type AMQPConfig struct {
	URL      string
	Exchange string
}

type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load builds Config from environment variables, reading a .env file first
// when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Could not load .env file, using system environment variables")
	}

	var (
		cfg = &Config{
			HTTPAddr: getString("HTTP_ADDR", defaultHTTPAddr),
			Ledger: LedgerConfig{
				Backend:          strings.ToLower(getString("LEDGER_BACKEND", BackendFile)),
				Path:             getString("LEDGER_PATH", defaultLedgerPath),
				TransactionsPath: getString("TRANSACTIONS_PATH", defaultTransactionsPath),
				DatabaseURL:      os.Getenv("DATABASE_URL"),
			},
			Redis: RedisConfig{
				Addr:     os.Getenv("REDIS_ADDR"),
				Password: os.Getenv("REDIS_PASSWORD"),
			},
			CoinGecko: CoinGeckoConfig{
				BaseURL: getString("COINGECKO_BASE_URL", defaultCoinGeckoURL),
				APIKey:  os.Getenv("COINGECKO_API_KEY"),
			},
			AMQP: AMQPConfig{
				URL:      os.Getenv("AMQP_URL"),
				Exchange: getString("AMQP_EXCHANGE", defaultAMQPExchange),
			},
			Logging: LoggingConfig{
				Level:  getString("LOG_LEVEL", "info"),
				Format: getString("LOG_FORMAT", "text"),
				File:   os.Getenv("LOG_FILE"),
			},
		}
		err error
	)

	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.PriceTTL, err = getDuration("PRICE_CACHE_TTL", defaultPriceCacheTTL); err != nil {
		return nil, err
	}
	if cfg.CoinGecko.RateLimit, err = getInt("COINGECKO_RATE_LIMIT", defaultCoinGeckoRate); err != nil {
		return nil, err
	}
	if cfg.CoinGecko.Timeout, err = getDuration("COINGECKO_TIMEOUT", defaultCoinGeckoTimeout); err != nil {
		return nil, err
	}
	if cfg.Trade.QuoteTTL, err = getDuration("QUOTE_TTL", defaultQuoteTTL); err != nil {
		return nil, err
	}
	if cfg.Trade.StartingBalance, err = getDecimal("STARTING_BALANCE", decimal.NewFromInt(1000)); err != nil {
		return nil, err
	}
	if cfg.Reward.Amount, err = getDecimal("REWARD_AMOUNT", decimal.NewFromInt(1)); err != nil {
		return nil, err
	}
	if cfg.Reward.Cooldown, err = getDuration("REWARD_COOLDOWN", defaultRewardCooldown); err != nil {
		return nil, err
	}
	if cfg.Logging.MaxSizeMB, err = getInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.Logging.MaxBackups, err = getInt("LOG_MAX_BACKUPS", 3); err != nil {
		return nil, err
	}
	if cfg.Logging.MaxAgeDays, err = getInt("LOG_MAX_AGE_DAYS", 28); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendFile:
		if c.Ledger.Path == "" || c.Ledger.TransactionsPath == "" {
			return fmt.Errorf("LEDGER_PATH and TRANSACTIONS_PATH are required for the file backend")
		}
	case BackendPostgres:
		if c.Ledger.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.Ledger.Backend)
	}
	if c.Trade.QuoteTTL <= 0 {
		return fmt.Errorf("QUOTE_TTL must be positive")
	}
	if c.Trade.StartingBalance.IsNegative() {
		return fmt.Errorf("STARTING_BALANCE must not be negative")
	}
	if !c.Reward.Amount.IsPositive() {
		return fmt.Errorf("REWARD_AMOUNT must be positive")
	}
	if c.CoinGecko.RateLimit <= 0 {
		return fmt.Errorf("COINGECKO_RATE_LIMIT must be positive")
	}
	return nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

func getDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert %s value %q to decimal: %w", key, value, err)
	}
	return parsed, nil
}
