package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultDatabasePath = "data/recipe-planner.db"
	defaultPort         = 8080
	defaultLogLevel     = "info"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	Port         int
	LogLevel     string
	JWTSecret    string

	GhostURL        string
	GhostContentKey string
	GhostAdminKey   string
	GeminiAPIKey    string
	GroqAPIKey      string

	// Category classification
	IncludeCannedCategory bool
	CategoryCachePath     string

	// RecipeArchivePath enables JSON snapshots of every stored recipe.
	RecipeArchivePath string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding variables already set. It reports whether
// a file was loaded; a missing file is not an error.
func LoadDotEnv(paths ...string) (bool, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return false, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return false, fmt.Errorf("failed to load env file: %w", err)
	}
	return true, nil
}

// NewFromEnv creates a new Config object from environment variables.
// Credentials are optional here; commands that need one check it with the
// Require* helpers.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		DatabasePath:       envOr("DATABASE_PATH", defaultDatabasePath),
		Port:               defaultPort,
		LogLevel:           strings.ToLower(envOr("LOG_LEVEL", defaultLogLevel)),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GhostURL:           os.Getenv("GHOST_API_URL"),
		GhostContentKey:    os.Getenv("GHOST_CONTENT_API_KEY"),
		GhostAdminKey:      os.Getenv("GHOST_ADMIN_API_KEY"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		CategoryCachePath:  os.Getenv("CATEGORY_CACHE_PATH"),
		RecipeArchivePath:  os.Getenv("RECIPE_ARCHIVE_PATH"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("CATEGORY_INCLUDE_CANNED"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CATEGORY_INCLUDE_CANNED %q: %w", v, err)
		}
		cfg.IncludeCannedCategory = include
	}

	for _, field := range strings.Split(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", field, err)
		}
		cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
	}

	if cfg.GhostAdminKey == "" {
		// Fallback to content key if only one is provided
		cfg.GhostAdminKey = cfg.GhostContentKey
	}

	return cfg, nil
}

// RequireJWT checks that a token signing secret is configured.
func (c *Config) RequireJWT() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable not set")
	}
	return nil
}

// RequireGhost checks that the Ghost API is configured.
func (c *Config) RequireGhost() error {
	if c.GhostURL == "" {
		return errors.New("GHOST_API_URL environment variable not set")
	}
	if c.GhostContentKey == "" {
		return errors.New("GHOST_CONTENT_API_KEY environment variable not set")
	}
	return nil
}

// RequireLLM checks that at least one LLM provider is configured.
func (c *Config) RequireLLM() error {
	if c.GroqAPIKey == "" && c.GeminiAPIKey == "" {
		return errors.New("GROQ_API_KEY or GEMINI_API_KEY environment variable not set")
	}
	return nil
}

// IsTelegramUserAllowed reports whether a Telegram user may talk to the bot.
func (c *Config) IsTelegramUserAllowed(id int64) bool {
	for _, allowed := range c.TelegramAllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
