package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var (
	ErrMissingSetting  = errors.New("missing configuration setting")
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// MissingSettingError names the environment variable that must be set before
// the provider can be used.
type MissingSettingError struct {
	Provider string
	Setting  string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("%s provider is not configured: %s is not set", e.Provider, e.Setting)
}

func (e *MissingSettingError) Is(target error) bool { return target == ErrMissingSetting }

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DBPath                string
	DBDriver              string
	RedisAddr             string
	GRPCPort              int
	GRPCReflectionEnabled bool
	CacheTTL              time.Duration

	DefaultProvider      string
	FallbackModel        string
	Temperature          float64
	NarrativeTemperature float64
	MaxOutputTokens      int64
	MaxRetries           int
	RequestTimeout       time.Duration
	ScoringBatchSize     int

	OpenAI    ProviderEnv
	Anthropic ProviderEnv
}

// ProviderEnv is the raw per-provider configuration as read from the environment.
type ProviderEnv struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ProviderSettings is the resolved configuration for one LLM backend.
type ProviderSettings struct {
	Name                 string
	APIKey               string
	BaseURL              string
	Model                string
	Temperature          float64
	NarrativeTemperature float64
	MaxOutputTokens      int64
	MaxRetries           int
	Timeout              time.Duration
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DBPath:                getEnv("DB_PATH", "./data/grader.db"),
		DBDriver:              getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		GRPCPort:              getInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getBool("GRPC_REFLECTION_ENABLED", false),
		CacheTTL:              getDuration("CACHE_TTL", 10*time.Minute),

		DefaultProvider:      NormalizeProvider(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		FallbackModel:        strings.TrimSpace(os.Getenv("LLM_MODEL")),
		Temperature:          getFloat("LLM_TEMPERATURE", 0.2),
		NarrativeTemperature: getFloat("LLM_NARRATIVE_TEMPERATURE", 0.7),
		MaxOutputTokens:      int64(getInt("LLM_MAX_OUTPUT_TOKENS", 4096)),
		MaxRetries:           getInt("LLM_MAX_RETRIES", 2),
		RequestTimeout:       getDuration("LLM_TIMEOUT", 2*time.Minute),
		ScoringBatchSize:     getInt("SCORING_BATCH_SIZE", 10),

		OpenAI: ProviderEnv{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
		},
		Anthropic: ProviderEnv{
			APIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
			Model:   strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")),
		},
	}
}

// NormalizeProvider lower-cases and trims a provider name.
func NormalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Providers lists the supported provider names.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderAnthropic}
}

// Provider resolves the settings for the named provider. An empty name
// selects the default provider. Credentials are never defaulted: a missing
// API key or model yields a MissingSettingError.
func (c *Config) Provider(name string) (ProviderSettings, error) {
	name = NormalizeProvider(name)
	if name == "" {
		name = c.DefaultProvider
	}

	var env ProviderEnv
	var prefix string
	switch name {
	case ProviderOpenAI:
		env, prefix = c.OpenAI, "OPENAI"
	case ProviderAnthropic:
		env, prefix = c.Anthropic, "ANTHROPIC"
	default:
		return ProviderSettings{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	if env.APIKey == "" {
		return ProviderSettings{}, &MissingSettingError{Provider: name, Setting: prefix + "_API_KEY"}
	}
	model := env.Model
	if model == "" {
		model = c.FallbackModel
	}
	if model == "" {
		return ProviderSettings{}, &MissingSettingError{Provider: name, Setting: prefix + "_MODEL (or LLM_MODEL)"}
	}
	if c.MaxOutputTokens <= 0 {
		return ProviderSettings{}, &MissingSettingError{Provider: name, Setting: "LLM_MAX_OUTPUT_TOKENS"}
	}

	return ProviderSettings{
		Name:                 name,
		APIKey:               env.APIKey,
		BaseURL:              env.BaseURL,
		Model:                model,
		Temperature:          c.Temperature,
		NarrativeTemperature: c.NarrativeTemperature,
		MaxOutputTokens:      c.MaxOutputTokens,
		MaxRetries:           c.MaxRetries,
		Timeout:              c.RequestTimeout,
	}, nil
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
