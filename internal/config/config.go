package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Speech    SpeechConfig
	Humanizer HumanizerConfig
	Billing   BillingConfig
	Limits    LimitsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type SpeechConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.elevenlabs.io/v1"
	ModelID string // default: "eleven_multilingual_v2"
}

type HumanizerConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.undetectable.ai"
}

type BillingConfig struct {
	StripeSecretKey string
	WebhookSecret   string
	ProMonthlyPrice string
	FrontendURL     string
}

// LimitsConfig holds the free-tier and polling knobs the quota gate and the
// humanizer client are constructed with.
type LimitsConfig struct {
	FreeLimit       int
	GraceWindow     time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	freeLimit, err := getEnvInt("FREE_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid FREE_LIMIT: %w", err)
	}

	maxPollAttempts, err := getEnvInt("HUMANIZER_MAX_POLL_ATTEMPTS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid HUMANIZER_MAX_POLL_ATTEMPTS: %w", err)
	}

	graceWindow, err := getEnvDuration("SUBSCRIPTION_GRACE_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SUBSCRIPTION_GRACE_WINDOW: %w", err)
	}

	pollInterval, err := getEnvDuration("HUMANIZER_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid HUMANIZER_POLL_INTERVAL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("SESSION_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Speech: SpeechConfig{
			APIKey:  getEnv("ELEVENLABS_API_KEY", ""),
			BaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),
			ModelID: getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		},
		Humanizer: HumanizerConfig{
			APIKey:  getEnv("UNDETECTABLE_AI_API_KEY", ""),
			BaseURL: getEnv("UNDETECTABLE_AI_BASE_URL", "https://api.undetectable.ai"),
		},
		Billing: BillingConfig{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			ProMonthlyPrice: getEnv("STRIPE_PRICE_ID_PRO_MONTHLY", ""),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Limits: LimitsConfig{
			FreeLimit:       freeLimit,
			GraceWindow:     graceWindow,
			PollInterval:    pollInterval,
			MaxPollAttempts: maxPollAttempts,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "SESSION_JWT_SECRET")
	}
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" {
		missing = append(missing, "OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
