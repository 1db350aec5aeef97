package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for the application.
type Config struct {
	// Inventory sync
	InventoryServiceURL string        `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:5005"`
	SyncTimeout         time.Duration `env:"SYNC_TIMEOUT" envDefault:"15s"`
	SyncMaxRetries      int           `env:"SYNC_MAX_RETRIES" envDefault:"4"` // retries after the first attempt
	SyncInitialBackoff  time.Duration `env:"SYNC_INITIAL_BACKOFF" envDefault:"500ms"`
	SyncMaxBackoff      time.Duration `env:"SYNC_MAX_BACKOFF" envDefault:"10s"`

	// Storage
	DataDir           string `env:"DATA_DIR" envDefault:"/app/data"`
	RecipeCatalogPath string `env:"RECIPE_CATALOG_PATH"`
	SnapshotRetention int    `env:"SNAPSHOT_RETENTION" envDefault:"20"`
	PersistPlans      bool   `env:"PERSIST_PLANS" envDefault:"false"`

	// Server
	Port         string `env:"PORT" envDefault:"7778"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	// Telegram operator alerts (optional)
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAlertChatID int64  `env:"TELEGRAM_ALERT_CHAT_ID"`
	TelegramWebhookURL  string `env:"TELEGRAM_WEBHOOK_URL"`

	// Item name translation (optional)
	GeminiAPIKey        string `env:"GEMINI_API_KEY"`
	GroqAPIKey          string `env:"GROQ_API_KEY"`
	TranslateItemNames  bool   `env:"TRANSLATE_ITEM_NAMES" envDefault:"false"`
	TranslateProvider   string `env:"TRANSLATE_PROVIDER" envDefault:"gemini"`
	TranslateSourceLang string `env:"TRANSLATE_SOURCE_LANG" envDefault:"el"`
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.InventoryServiceURL) == "" {
		return fmt.Errorf("INVENTORY_SERVICE_URL environment variable not set")
	}
	u, err := url.Parse(c.InventoryServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("INVENTORY_SERVICE_URL must be an absolute http(s) URL, got %q", c.InventoryServiceURL)
	}
	if c.SyncTimeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive")
	}
	if c.SyncMaxRetries < 0 {
		return fmt.Errorf("SYNC_MAX_RETRIES must not be negative")
	}
	if c.SyncInitialBackoff <= 0 || c.SyncMaxBackoff < c.SyncInitialBackoff {
		return fmt.Errorf("SYNC_INITIAL_BACKOFF must be positive and not exceed SYNC_MAX_BACKOFF")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DATA_DIR environment variable not set")
	}
	if c.SnapshotRetention < 0 {
		return fmt.Errorf("SNAPSHOT_RETENTION must not be negative")
	}
	if c.TelegramBotToken != "" && c.TelegramAlertChatID == 0 {
		return fmt.Errorf("TELEGRAM_ALERT_CHAT_ID environment variable not set")
	}
	if c.TelegramWebhookURL != "" && c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TranslateItemNames {
		switch c.TranslateProvider {
		case "gemini":
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY environment variable not set")
			}
		case "groq":
			if c.GroqAPIKey == "" {
				return fmt.Errorf("GROQ_API_KEY environment variable not set")
			}
		default:
			return fmt.Errorf("TRANSLATE_PROVIDER must be gemini or groq, got %q", c.TranslateProvider)
		}
	}
	return nil
}

// SnapshotDir is where the snapshot store keeps its version files.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// DatabasePath is the SQLite database holding metrics, the translation
// cache and plan history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "meal-planner.db")
}

// CatalogPath returns the recipe catalog location.
func (c *Config) CatalogPath() string {
	if c.RecipeCatalogPath != "" {
		return c.RecipeCatalogPath
	}
	return filepath.Join(c.DataDir, "recipes.yaml")
}
