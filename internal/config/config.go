package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"exchange-rates-client/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Session  SessionConfig  `mapstructure:"session"`
	Rates    RatesConfig    `mapstructure:"rates"`
	History  HistoryConfig  `mapstructure:"history"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// APIConfig covers the remote rates service.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	CSRFHeader     string        `mapstructure:"csrf_header"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	LogBodies      int           `mapstructure:"log_bodies"`
}

// SessionConfig controls where the bearer token is persisted.
type SessionConfig struct {
	Path      string `mapstructure:"path"`
	Ephemeral bool   `mapstructure:"ephemeral"`
}

// RatesConfig sets rate table behaviour.
type RatesConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// HistoryConfig sets history defaults.
type HistoryConfig struct {
	DefaultPeriod string `mapstructure:"default_period"`
	From          string `mapstructure:"from"`
	To            string `mapstructure:"to"`
}

// WatchConfig governs the polling loop.
type WatchConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	AlignToInterval  bool          `mapstructure:"align_to_interval"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
	TriggerRecompute bool          `mapstructure:"trigger_recompute"`
	Archive          bool          `mapstructure:"archive"`
	LockKey          int64         `mapstructure:"lock_key"`
	ThresholdPct     float64       `mapstructure:"threshold_pct"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the snapshot archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// CacheConfig points at the optional Redis latest-rates cache. An empty Addr
// disables it.
type CacheConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert parameters.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATESCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "ratesctl"))
		}
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath()
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
	v.SetDefault("app.name", "ratesctl")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")

	v.SetDefault("api.base_url", "http://localhost:5099/api")
	v.SetDefault("api.request_timeout", "15s")
	v.SetDefault("api.csrf_header", "X-CSRF-TOKEN")
	v.SetDefault("api.rate_limit_rps", 10.0)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("api.log_bodies", 0)

	v.SetDefault("session.ephemeral", false)

	v.SetDefault("rates.page_size", 20)

	v.SetDefault("history.default_period", "week")
	v.SetDefault("history.from", "USD")
	v.SetDefault("history.to", "UAH")

	v.SetDefault("watch.interval", "5m")
	v.SetDefault("watch.align_to_interval", true)
	v.SetDefault("watch.startup_delay", "0s")
	v.SetDefault("watch.trigger_recompute", false)
	v.SetDefault("watch.archive", false)
	v.SetDefault("watch.lock_key", int64(0x72617465))
	v.SetDefault("watch.threshold_pct", 0.5)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)

	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "15m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")
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

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ratesctl-session.db"
	}
	return filepath.Join(dir, "ratesctl", "session.db")
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be greater than zero")
	}
	if c.API.CSRFHeader == "" {
		return fmt.Errorf("api.csrf_header must not be empty")
	}
	if c.API.RateLimitRPS < 0 {
		return fmt.Errorf("api.rate_limit_rps cannot be negative")
	}
	if c.Rates.PageSize <= 0 {
		return fmt.Errorf("rates.page_size must be greater than zero")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Watch.ThresholdPct < 0 {
		return fmt.Errorf("watch.threshold_pct cannot be negative")
	}
	if c.Cache.Addr != "" && c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolvePageSize returns either the CLI override or config default.
func (c *Config) ResolvePageSize(override int) int {
	if override > 0 {
		return override
	}
	return c.Rates.PageSize
}
