package config

import (
	"fmt"
	"time"

	"github.com/jackzampolin/primer/internal/backend"
	"github.com/jackzampolin/primer/internal/providers"
	"github.com/jackzampolin/primer/internal/store"
)

// Config holds primer configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers" json:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults" json:"defaults"`
	Storage      StorageCfg                `mapstructure:"storage" yaml:"storage" json:"storage"`
	Source       SourceCfg                 `mapstructure:"source" yaml:"source" json:"source"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type" json:"type"`                                  // "openrouter", "openai-compatible", "mock"
	Model          string `mapstructure:"model" yaml:"model" json:"model"`                               // Model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`                         // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`                      // Endpoint override
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`                // Requests per minute
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"` // HTTP timeout
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// DefaultsCfg holds the defaults for pipeline runs.
type DefaultsCfg struct {
	LLMProvider     string  `mapstructure:"llm_provider" yaml:"llm_provider" json:"llm_provider"`                // Backend used by stages
	ChunkSizeLines  int     `mapstructure:"chunk_size_lines" yaml:"chunk_size_lines" json:"chunk_size_lines"`
	DelaySeconds    float64 `mapstructure:"delay_seconds" yaml:"delay_seconds" json:"delay_seconds"`             // Pause between backend calls
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" yaml:"max_output_tokens" json:"max_output_tokens"`
	TimeoutMs       int     `mapstructure:"timeout_ms" yaml:"timeout_ms" json:"timeout_ms"`
}

// StorageCfg selects the chunk and state store.
type StorageCfg struct {
	Driver      string `mapstructure:"driver" yaml:"driver" json:"driver"`                   // "sqlite", "redis", "memory"
	Path        string `mapstructure:"path" yaml:"path" json:"path"`                         // SQLite file; empty means {home}/primer.db
	RedisURL    string `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix" json:"redis_prefix"`
}

// SourceCfg points at the document being processed.
type SourceCfg struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:           providers.TypeOpenRouter,
				Model:          "anthropic/claude-sonnet-4",
				APIKey:         "${OPENROUTER_API_KEY}",
				RateLimit:      60,
				TimeoutSeconds: 600,
				MaxRetries:     3,
				Enabled:        true,
			},
			"local": {
				Type:           providers.TypeOpenAICompat,
				Model:          "llama3.1",
				BaseURL:        "http://localhost:11434/v1",
				RateLimit:      30,
				TimeoutSeconds: 600,
				MaxRetries:     2,
				Enabled:        false,
			},
			"mock": {
				Type:    providers.TypeMock,
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:     "openrouter",
			ChunkSizeLines:  100,
			DelaySeconds:    2,
			Temperature:     0.3,
			MaxOutputTokens: 16000,
			TimeoutMs:       600000,
		},
		Storage: StorageCfg{
			Driver:      store.DriverSQLite,
			RedisPrefix: store.DefaultRedisPrefix,
		},
	}
}

// Validate checks values the pipeline would otherwise reject mid-run.
func (c *Config) Validate() error {
	if c.Defaults.ChunkSizeLines <= 0 {
		return fmt.Errorf("defaults.chunk_size_lines must be positive, got %d", c.Defaults.ChunkSizeLines)
	}
	if c.Defaults.DelaySeconds < 0 {
		return fmt.Errorf("defaults.delay_seconds must not be negative, got %v", c.Defaults.DelaySeconds)
	}
	switch c.Storage.Driver {
	case "", store.DriverSQLite, store.DriverMemory:
	case store.DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Delay returns the pause between backend calls.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Defaults.DelaySeconds * float64(time.Second))
}

// BackendOptions returns the per-call backend options.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		Temperature:     c.Defaults.Temperature,
		MaxOutputTokens: c.Defaults.MaxOutputTokens,
		Timeout:         time.Duration(c.Defaults.TimeoutMs) * time.Millisecond,
	}
}

// StoreConfig returns the store settings, using defaultPath when no SQLite
// path is configured.
func (c *Config) StoreConfig(defaultPath string) store.Config {
	path := c.Storage.Path
	if path == "" {
		path = defaultPath
	}
	return store.Config{
		Driver:      c.Storage.Driver,
		Path:        path,
		RedisURL:    ResolveEnvVars(c.Storage.RedisURL),
		RedisPrefix: c.Storage.RedisPrefix,
	}
}
