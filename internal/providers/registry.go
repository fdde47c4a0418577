package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Provider types accepted in configuration.
const (
	TypeOpenRouter   = "openrouter"
	TypeOpenAICompat = "openai-compatible"
	TypeMock         = "mock"
)

// Registry holds named LLM clients. It supports config-driven instantiation,
// hot-reload, and provides thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]registered
	logger  *slog.Logger
}

type registered struct {
	client LLMClient
	cfg    LLMProviderConfig
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]registered),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name. The client is used as-is,
// without a rate limiter.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = registered{client: client}
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
	if r.logger != nil {
		r.logger.Info("unregistered LLM client", "name", name)
	}
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return entry.client, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// RateLimiters returns the limiter status for every rate-limited client.
func (r *Registry) RateLimiters() map[string]RateLimiterStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]RateLimiterStatus)
	for name, entry := range r.clients {
		if rl, ok := entry.client.(*RateLimitedClient); ok {
			out[name] = rl.limiter.Status()
		}
	}
	return out
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with resolved API key.
type LLMProviderConfig struct {
	Type           string // "openrouter", "openai-compatible", "mock"
	Model          string
	APIKey         string // Resolved API key
	BaseURL        string
	RateLimit      int // Requests per minute
	TimeoutSeconds int
	MaxRetries     int
	Enabled        bool
}

// usable reports whether a provider config can produce a client.
// Only OpenRouter requires an API key; local servers and the mock do not.
func (c LLMProviderConfig) usable() bool {
	if !c.Enabled {
		return false
	}
	if c.Type == TypeOpenRouter && c.APIKey == "" {
		return false
	}
	return true
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured will be unregistered.
// Providers with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.usable() {
			if r.logger != nil && provCfg.Enabled {
				r.logger.Warn("skipping LLM provider without API key", "name", name, "type", provCfg.Type)
			}
			continue
		}
		want[name] = true

		existing, hasExisting := r.clients[name]
		if hasExisting && existing.cfg == provCfg {
			continue
		}
		client := createLLMClient(provCfg)
		if client == nil {
			if r.logger != nil {
				r.logger.Warn("unknown LLM provider type", "name", name, "type", provCfg.Type)
			}
			delete(want, name)
			continue
		}
		r.clients[name] = registered{client: client, cfg: provCfg}
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.clients {
		if !want[name] {
			delete(r.clients, name)
			if r.logger != nil {
				r.logger.Info("unregistered LLM client", "name", name)
			}
		}
	}
}

// createLLMClient creates a rate-limited LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) LLMClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	var client LLMClient
	switch cfg.Type {
	case TypeOpenRouter:
		client = NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      timeout,
			RPM:          cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
		})
	case TypeOpenAICompat:
		client = NewOpenAICompatClient(OpenAICompatConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      timeout,
			RPM:          cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
		})
	case TypeMock:
		mock := NewMockClient()
		mock.Latency = 0
		client = mock
	default:
		return nil
	}
	return WithRateLimit(client, NewRateLimiter(cfg.RateLimit))
}
