package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"price-action-bets/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Betting  BettingConfig  `mapstructure:"betting"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Database DatabaseConfig `mapstructure:"database"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// FeedConfig governs the price feed.
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Assets         []string      `mapstructure:"assets"`
	Interval       time.Duration `mapstructure:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// LedgerConfig covers external ledger connectivity.
type LedgerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// BettingConfig tunes the lifecycle engine.
type BettingConfig struct {
	Durations        []time.Duration `mapstructure:"durations"`
	PayoutMultiplier float64         `mapstructure:"payout_multiplier"`
	AlignWindows     bool            `mapstructure:"align_windows"`
	HistorySize      int             `mapstructure:"history_size"`
}

// NotifyConfig defines settlement notification routing.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram notification channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DatabaseConfig encapsulates optional PostgreSQL connectivity for the
// settlement history.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEBET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricebet")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("feed.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("feed.assets", []string{"BTC", "SOL"})
	v.SetDefault("feed.interval", "5s")
	v.SetDefault("feed.request_timeout", "10s")
	v.SetDefault("feed.user_agent", "pricebet/1.0")

	v.SetDefault("ledger.request_timeout", "5s")
	v.SetDefault("ledger.user_agent", "pricebet/1.0")

	v.SetDefault("betting.durations", []string{"1m", "15m"})
	v.SetDefault("betting.payout_multiplier", 2.0)
	v.SetDefault("betting.align_windows", false)
	v.SetDefault("betting.history_size", 50)

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Feed.Interval <= 0 {
		return fmt.Errorf("feed.interval must be greater than zero")
	}
	if len(c.Feed.Assets) == 0 {
		return fmt.Errorf("feed.assets must not be empty")
	}
	if len(c.Betting.Durations) == 0 {
		return fmt.Errorf("betting.durations must not be empty")
	}
	for _, d := range c.Betting.Durations {
		if d <= 0 {
			return fmt.Errorf("betting.durations entries must be positive")
		}
	}
	if c.Betting.PayoutMultiplier <= 0 {
		return fmt.Errorf("betting.payout_multiplier must be greater than zero")
	}
	if c.Betting.HistorySize <= 0 {
		return fmt.Errorf("betting.history_size must be greater than zero")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required")
		}
	}
	return nil
}
