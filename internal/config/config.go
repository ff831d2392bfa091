package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App     AppConfig
	Discord DiscordConfig
	Storage StorageConfig
	Redis   RedisConfig
	Bridge  BridgeConfig
	AI      AIConfig
	Logger  LoggerConfig
}

// AppConfig holds service metadata.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// DiscordConfig holds gateway credentials and the reviewer allow-list.
type DiscordConfig struct {
	Token           string
	OwnerID         string
	Admins          []string
	ApproveFollowup bool
}

// StorageConfig selects the record-store backend. When DSN is empty the
// file store under DataDir is used.
type StorageConfig struct {
	DataDir  string
	DSN      string
	MaxConns int32
	MinConns int32
}

// RedisConfig holds the optional relay-cache connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	RelayTTL time.Duration
}

// BridgeConfig configures the HTTP bridge.
type BridgeConfig struct {
	Host                  string
	Port                  string
	JWTSecret             string
	TokenTTLMinutes       int
	SecretHash            string
	AllowedOrigin         string
	RequestTimeoutSeconds int
}

// AIConfig configures the optional assistant.
type AIConfig struct {
	APIKey string
	Model  string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "booking-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			Token:           os.Getenv("DISCORD_TOKEN"),
			OwnerID:         os.Getenv("OWNER_ID"),
			Admins:          splitIDs(os.Getenv("ADMINS")),
			ApproveFollowup: getEnvAsBool("APPROVE_FOLLOWUP", true),
		},
		Storage: StorageConfig{
			DataDir:  getEnv("DATA_DIR", "./data"),
			DSN:      os.Getenv("POSTGRES_DSN"),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns: int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			RelayTTL: time.Duration(getEnvAsInt("RELAY_TTL_HOURS", 24)) * time.Hour,
		},
		Bridge: BridgeConfig{
			Host:                  getEnv("WEB_HOST", "127.0.0.1"),
			Port:                  getEnv("WEB_PORT", "8080"),
			JWTSecret:             getEnv("BRIDGE_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes:       getEnvAsInt("BRIDGE_TOKEN_TTL_MINUTES", 15),
			SecretHash:            os.Getenv("BRIDGE_SECRET_HASH"),
			AllowedOrigin:         getEnv("VERCEL_URL", "http://localhost:3000"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		AI: AIConfig{
			APIKey: firstEnv("OPENAI_API_KEY", "GEMINI_API", "GEMINI_API_KEY"),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%s", b.Host, b.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (b BridgeConfig) RequestTimeout() time.Duration {
	if b.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
