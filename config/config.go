package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "cpm-pazar"
	EnvFileName = "config.env"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultPort               = "8080"
	DefaultGenerationTimeout  = 30 * time.Second
	DefaultSessionIdleTimeout = 2 * time.Hour
	DefaultMaxImageBytes      = 10 * 1024 * 1024
	DefaultDBPath             = ":memory:"
)

// Config holds the runtime configuration read from the environment.
type Config struct {
	Port string

	GeminiAPIKey       string
	GeminiModel        string
	GenerationTimeout  time.Duration
	GenerationCacheTTL time.Duration

	DBPath             string
	SessionIdleTimeout time.Duration
	MaxImageBytes      int64

	TelegramBotToken string
	TelegramChatID   int64

	LogLevel string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from a .env file in the working directory. Errors are
// ignored since neither file has to exist. Variables already present in the
// environment win.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load()
}

// Load builds a Config from the current environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"), // Empty selects llm.DefaultGeminiModel
		DBPath:       getEnv("CPM_DB_PATH", DefaultDBPath),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.GenerationTimeout, err = getDuration("GENERATION_TIMEOUT", DefaultGenerationTimeout); err != nil {
		return nil, err
	}
	if cfg.GenerationCacheTTL, err = getDuration("GENERATION_CACHE_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", DefaultSessionIdleTimeout); err != nil {
		return nil, err
	}

	cfg.MaxImageBytes = DefaultMaxImageBytes
	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_IMAGE_BYTES must be a positive integer, got %q", v)
		}
		cfg.MaxImageBytes = n
	}

	// Telegram relay is only enabled when both token and chat are present
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a valid integer: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// TelegramEnabled reports whether the contact-seller relay should post to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	return d, nil
}
