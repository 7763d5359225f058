// Package config loads ragmesh settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider selects the completion backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

type Config struct {
	Provider   Provider
	Model      ModelConfig
	Retrieval  RetrievalConfig
	Web        WebConfig
	Memory     MemoryConfig
	Policy     PolicyConfig
	Moderation ModerationConfig
	Server     ServerConfig
	Log        LogConfig
}

type ModelConfig struct {
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int64

	// InstructionsFile holds a custom system instructions template.
	InstructionsFile string
}

type RetrievalConfig struct {
	StorePath  string
	Collection string
	ChunkSize  int
	MaxResults int
}

type WebConfig struct {
	TavilyAPIKey  string
	MaxResults    int
	Fallback      bool
	CrossValidate bool
}

type MemoryConfig struct {
	MaxExchanges     int
	KeepRecent       int
	ContextExchanges int
	SummaryMaxTokens int64
}

type PolicyConfig struct {
	File  string
	Watch bool
}

type ModerationConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Provider: Provider(strings.ToLower(getEnv("RAGMESH_PROVIDER", string(ProviderOpenAI)))),
		Model: ModelConfig{
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens:        int64(getEnvInt("COMPLETION_MAX_TOKENS", 600)),
			InstructionsFile: getEnv("INSTRUCTIONS_FILE", ""),
		},
		Retrieval: RetrievalConfig{
			StorePath:  getEnv("DOCUMENT_STORE_PATH", "./data/index"),
			Collection: getEnv("DOCUMENT_COLLECTION", "documents"),
			ChunkSize:  getEnvInt("CHUNK_SIZE", 1000),
			MaxResults: getEnvInt("MAX_DOC_RESULTS", 3),
		},
		Web: WebConfig{
			TavilyAPIKey:  getEnv("TAVILY_API_KEY", ""),
			MaxResults:    getEnvInt("MAX_WEB_RESULTS", 3),
			Fallback:      getEnvBool("WEB_FALLBACK", true),
			CrossValidate: getEnvBool("CROSS_VALIDATE", false),
		},
		Memory: MemoryConfig{
			MaxExchanges:     getEnvInt("MAX_EXCHANGES", 20),
			KeepRecent:       getEnvInt("KEEP_RECENT_EXCHANGES", 5),
			ContextExchanges: getEnvInt("CONTEXT_EXCHANGES", 10),
			SummaryMaxTokens: int64(getEnvInt("SUMMARIZATION_MAX_TOKENS", 200)),
		},
		Policy: PolicyConfig{
			File:  getEnv("POLICY_FILE", ""),
			Watch: getEnvBool("POLICY_WATCH", false),
		},
		Moderation: ModerationConfig{
			Enabled:  getEnvBool("MODERATION_ENABLED", true),
			CacheTTL: getEnvDuration("MODERATION_CACHE_TTL", 10*time.Minute),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks limits and enumerations.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("RAGMESH_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.Provider))
	}
	for _, limit := range []struct {
		name  string
		value int64
	}{
		{"COMPLETION_MAX_TOKENS", c.Model.MaxTokens},
		{"CHUNK_SIZE", int64(c.Retrieval.ChunkSize)},
		{"MAX_DOC_RESULTS", int64(c.Retrieval.MaxResults)},
		{"MAX_WEB_RESULTS", int64(c.Web.MaxResults)},
		{"MAX_EXCHANGES", int64(c.Memory.MaxExchanges)},
		{"CONTEXT_EXCHANGES", int64(c.Memory.ContextExchanges)},
		{"SUMMARIZATION_MAX_TOKENS", c.Memory.SummaryMaxTokens},
	} {
		if limit.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", limit.name))
		}
	}
	if c.Memory.KeepRecent < 0 || c.Memory.KeepRecent >= c.Memory.MaxExchanges {
		errs = append(errs, errors.New("KEEP_RECENT_EXCHANGES must be in [0, MAX_EXCHANGES)"))
	}
	if c.Policy.Watch && c.Policy.File == "" {
		errs = append(errs, errors.New("POLICY_WATCH requires POLICY_FILE"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// WebEnabled reports whether a web search key is configured.
func (c *Config) WebEnabled() bool { return c.Web.TavilyAPIKey != "" }

// ModerationAvailable reports whether moderation is enabled and an OpenAI
// key is present to call it with.
func (c *Config) ModerationAvailable() bool {
	return c.Moderation.Enabled && c.Model.OpenAIAPIKey != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
