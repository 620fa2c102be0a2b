package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/vespa-garage/vespa-admin/internal/storage"
)

const (
	AppName     = "vespa-admin"
	EnvFileName = "config.env"
)

// Config is read from the environment. Values from the config.env file in
// the user's config directory and a local .env are loaded first by
// LoadEnvFile; real environment variables win over both.
type Config struct {
	API      APIConfig
	Store    StoreConfig
	Telegram TelegramConfig
	Watcher  WatcherConfig
	Log      LogConfig

	MetricsAddr string `env:"METRICS_ADDR" env-default:":9090" env-description:"listen address for /metrics and /healthz; empty disables"`
}

type APIConfig struct {
	BaseURL string        `env:"VESPA_API_BASE_URL" env-default:"http://localhost:8000/api" env-description:"backend API base URL"`
	Timeout time.Duration `env:"VESPA_REQUEST_TIMEOUT" env-default:"30s" env-description:"per-request timeout"`
	// RefreshLeeway of zero disables refreshing ahead of token expiry.
	RefreshLeeway time.Duration `env:"VESPA_REFRESH_LEEWAY" env-default:"0s" env-description:"refresh the access token this long before it expires"`
}

type StoreConfig struct {
	TokenKey      string `env:"VESPA_TOKEN_KEY" env-description:"passphrase encrypting stored credentials"`
	Backend       string `env:"VESPA_CREDENTIAL_STORE" env-default:"sqlite" env-description:"sqlite, redis or memory"`
	DBPath        string `env:"VESPA_DB_PATH" env-description:"sqlite database path; defaults to the config directory"`
	RedisAddr     string `env:"VESPA_REDIS_ADDR"`
	RedisPassword string `env:"VESPA_REDIS_PASSWORD"`
	RedisDB       int    `env:"VESPA_REDIS_DB" env-default:"0"`
	RedisPrefix   string `env:"VESPA_REDIS_PREFIX" env-default:"vespa-admin:"`
}

type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `env:"TELEGRAM_CHAT_ID"`
}

type WatcherConfig struct {
	PollInterval time.Duration `env:"STOCK_POLL_INTERVAL" env-default:"10m"`
	// AdminURL adds an "Open inventory" button to stock alerts when set.
	AdminURL string `env:"VESPA_ADMIN_URL" env-description:"admin UI inventory page linked from stock alerts"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"console" env-description:"console or json"`
}

// ConfigDir returns the application's config directory, creating it if
// needed.
func ConfigDir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// ConfigFilePath returns the full path to config.env.
func ConfigFilePath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from ./.env. Errors are ignored since neither file
// has to exist.
func LoadEnvFile() {
	if configPath, err := ConfigFilePath(); err == nil {
		_ = godotenv.Load(configPath)
	}
	_ = godotenv.Load(".env")
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	switch cfg.Store.Backend {
	case storage.BackendSQLite, storage.BackendRedis, storage.BackendMemory:
	default:
		return nil, fmt.Errorf("VESPA_CREDENTIAL_STORE must be sqlite, redis or memory, got %q", cfg.Store.Backend)
	}
	if cfg.Watcher.PollInterval <= 0 {
		return nil, fmt.Errorf("STOCK_POLL_INTERVAL must be positive, got %s", cfg.Watcher.PollInterval)
	}
	if cfg.Watcher.AdminURL != "" {
		u, err := url.Parse(cfg.Watcher.AdminURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("VESPA_ADMIN_URL must be an http(s) URL, got %q", cfg.Watcher.AdminURL)
		}
	}
	if cfg.API.Timeout <= 0 {
		return nil, fmt.Errorf("VESPA_REQUEST_TIMEOUT must be positive, got %s", cfg.API.Timeout)
	}

	return &cfg, nil
}

// CheckRequired returns the names of required variables that are not set.
// The Telegram settings are only required by the stock agent.
func (c *Config) CheckRequired(withTelegram bool) []string {
	var missing []string
	if c.Store.Backend != storage.BackendMemory && c.Store.TokenKey == "" {
		missing = append(missing, "VESPA_TOKEN_KEY")
	}
	if c.Store.Backend == storage.BackendRedis && c.Store.RedisAddr == "" {
		missing = append(missing, "VESPA_REDIS_ADDR")
	}
	if withTelegram {
		if c.Telegram.BotToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if c.Telegram.ChatID == 0 {
			missing = append(missing, "TELEGRAM_CHAT_ID")
		}
	}
	return missing
}

// StoreOptions translates the store settings for storage.Open. An empty
// DBPath resolves to credentials.db in the config directory.
func (c *Config) StoreOptions() (storage.Options, error) {
	dbPath := c.Store.DBPath
	if dbPath == "" && c.Store.Backend == storage.BackendSQLite {
		configDir, err := ConfigDir()
		if err != nil {
			return storage.Options{}, err
		}
		dbPath = filepath.Join(configDir, "credentials.db")
	}

	return storage.Options{
		Backend:       c.Store.Backend,
		DBPath:        dbPath,
		RedisAddr:     c.Store.RedisAddr,
		RedisPassword: c.Store.RedisPassword,
		RedisDB:       c.Store.RedisDB,
		RedisPrefix:   c.Store.RedisPrefix,
	}, nil
}

// envFileOrder is the order keys are written to config.env.
var envFileOrder = []string{
	"VESPA_API_BASE_URL",
	"VESPA_TOKEN_KEY",
	"VESPA_CREDENTIAL_STORE",
	"VESPA_ADMIN_URL",
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID",
}

// WriteEnvFile writes values to config.env with 0600 permissions since the
// file contains secrets. Keys outside the known set are ignored. A value that
// would not read back unchanged is rejected before the file is touched.
// Returns the path written.
func WriteEnvFile(values map[string]string) (string, error) {
	var lines []string
	for _, key := range envFileOrder {
		val := values[key]
		if val == "" {
			continue
		}
		line, err := godotenv.Marshal(map[string]string{key: val})
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", key, err)
		}
		parsed, err := godotenv.Unmarshal(line)
		if err != nil || parsed[key] != val {
			return "", fmt.Errorf("%s contains characters that cannot be stored in %s", key, EnvFileName)
		}
		lines = append(lines, line)
	}

	configPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configPath, nil
}
