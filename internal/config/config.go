package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// PostgresConfig holds networked store connection settings.
type PostgresConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// SQLiteConfig holds embedded store settings.
type SQLiteConfig struct {
	Path string `yaml:"path" envconfig:"SQLITE_PATH"`
}

const (
	// BackendSQLite selects the embedded file-based store.
	BackendSQLite = "sqlite"
	// BackendPostgres selects the networked relational store.
	BackendPostgres = "postgres"
)

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend" envconfig:"STORE_BACKEND"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// ConversationConfig tunes the in-memory conversation registry.
type ConversationConfig struct {
	// TTLMinutes expires abandoned conversations; 0 -> default (15 minutes).
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"CONVERSATION_TTL_MINUTES"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Logging      LoggingConfig      `yaml:"logging"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Store        StoreConfig        `yaml:"store"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = BackendSQLite
	}
	switch backend {
	case BackendSQLite:
		if strings.TrimSpace(cfg.Store.SQLite.Path) == "" {
			cfg.Store.SQLite.Path = "./bot.db"
		}
	case BackendPostgres:
		pg := &cfg.Store.Postgres
		if strings.TrimSpace(pg.Host) == "" {
			return fmt.Errorf("store.postgres.host is required when store.backend is 'postgres'")
		}
		if strings.TrimSpace(pg.User) == "" {
			return fmt.Errorf("store.postgres.user is required when store.backend is 'postgres'")
		}
		if strings.TrimSpace(pg.Name) == "" {
			return fmt.Errorf("store.postgres.name is required when store.backend is 'postgres'")
		}
		if strings.TrimSpace(pg.Port) == "" {
			pg.Port = "5432"
		}
		if strings.TrimSpace(pg.SSLMode) == "" {
			pg.SSLMode = "disable"
		}
		if pg.MaxConnections <= 0 {
			pg.MaxConnections = 4
		}
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: sqlite, postgres", cfg.Store.Backend)
	}
	cfg.Store.Backend = backend

	if cfg.Conversation.TTLMinutes < 0 {
		return fmt.Errorf("conversation.ttl_minutes must be >= 0")
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
