package providers

import (
	"sync"
	"testing"
)

// innerClient strips the rate limiting wrapper added by the registry.
func innerClient(t *testing.T, client LLMClient) LLMClient {
	t.Helper()
	rl, ok := client.(*RateLimitedClient)
	if !ok {
		t.Fatalf("expected *RateLimitedClient, got %T", client)
	}
	return rl.client
}

func TestRegistry(t *testing.T) {
	t.Run("register and get LLM", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockClient()

		r.RegisterLLM("test-llm", mock)

		client, err := r.GetLLM("test-llm")
		if err != nil {
			t.Fatalf("GetLLM() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
	})

	t.Run("get nonexistent LLM", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.GetLLM("nonexistent")
		if err == nil {
			t.Error("expected error for nonexistent LLM")
		}
	})

	t.Run("list providers sorted", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("llm2", NewMockClient())
		r.RegisterLLM("llm1", NewMockClient())

		list := r.ListLLM()
		if len(list) != 2 || list[0] != "llm1" || list[1] != "llm2" {
			t.Errorf("ListLLM() = %v, want [llm1 llm2]", list)
		}
	})

	t.Run("has and unregister", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("my-llm", NewMockClient())

		if !r.HasLLM("my-llm") {
			t.Error("HasLLM() = false for registered LLM")
		}
		r.UnregisterLLM("my-llm")
		if r.HasLLM("my-llm") {
			t.Error("HasLLM() = true after unregister")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		r := NewRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				r.RegisterLLM("concurrent-llm", NewMockClient())
			}()
			go func() {
				defer wg.Done()
				r.GetLLM("concurrent-llm") // May fail, that's ok
			}()
		}
		wg.Wait()
	})
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("registers every provider type", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, Model: "anthropic/claude-sonnet-4", APIKey: "test-key", Enabled: true},
				"ollama":     {Type: TypeOpenAICompat, Model: "llama3.1", Enabled: true},
				"mock":       {Type: TypeMock, Enabled: true},
			},
		})

		for _, name := range []string{"openrouter", "ollama", "mock"} {
			if !r.HasLLM(name) {
				t.Errorf("expected %s to be registered", name)
			}
		}
		if got := len(r.RateLimiters()); got != 3 {
			t.Errorf("RateLimiters() has %d entries, want 3", got)
		}
	})

	t.Run("skips disabled providers", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, APIKey: "test-key", Enabled: false},
			},
		})

		if r.HasLLM("openrouter") {
			t.Error("disabled provider should not be registered")
		}
	})

	t.Run("openrouter requires an API key", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, Enabled: true},
				"local":      {Type: TypeOpenAICompat, Enabled: true},
			},
		})

		if r.HasLLM("openrouter") {
			t.Error("openrouter without API key should not be registered")
		}
		if !r.HasLLM("local") {
			t.Error("openai-compatible provider should not need an API key")
		}
	})

	t.Run("skips unknown types", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"weird": {Type: "carrier-pigeon", APIKey: "k", Enabled: true},
			},
		})
		if r.HasLLM("weird") {
			t.Error("unknown provider type should not be registered")
		}
	})

	t.Run("uses custom model for LLM provider", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, Model: "custom-model", APIKey: "test-key", Enabled: true},
			},
		})

		client, _ := r.GetLLM("openrouter")
		orClient, ok := innerClient(t, client).(*OpenRouterClient)
		if !ok {
			t.Fatal("expected OpenRouterClient")
		}
		if orClient.defaultModel != "custom-model" {
			t.Errorf("expected custom-model, got %s", orClient.defaultModel)
		}
	})
}

func TestRegistry_Reload(t *testing.T) {
	t.Run("adds new providers on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{})

		r.Reload(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, APIKey: "new-key", Enabled: true},
			},
		})

		if !r.HasLLM("openrouter") {
			t.Error("expected openrouter after reload")
		}
	})

	t.Run("removes providers on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, APIKey: "key", Enabled: true},
			},
		})

		r.Reload(RegistryConfig{})

		if r.HasLLM("openrouter") {
			t.Error("openrouter should be removed after reload")
		}
	})

	t.Run("updates providers with changed API keys", func(t *testing.T) {
		cfg := func(key string) RegistryConfig {
			return RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, APIKey: key, Enabled: true},
			}}
		}
		r := NewRegistryFromConfig(cfg("old-key"))

		client, _ := r.GetLLM("openrouter")
		if innerClient(t, client).(*OpenRouterClient).apiKey != "old-key" {
			t.Error("should start with old key")
		}

		r.Reload(cfg("new-key"))

		client, _ = r.GetLLM("openrouter")
		if got := innerClient(t, client).(*OpenRouterClient).apiKey; got != "new-key" {
			t.Errorf("expected new-key, got %s", got)
		}
	})

	t.Run("keeps providers with unchanged config", func(t *testing.T) {
		cfg := RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
			"openrouter": {Type: TypeOpenRouter, Model: "test-model", APIKey: "same-key", RateLimit: 60, Enabled: true},
		}}
		r := NewRegistryFromConfig(cfg)
		client1, _ := r.GetLLM("openrouter")

		r.Reload(cfg)
		client2, _ := r.GetLLM("openrouter")

		if client1 != client2 {
			t.Error("client should not be replaced when config unchanged")
		}
	})

	t.Run("concurrent reload is safe", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				r.Reload(RegistryConfig{
					LLMProviders: map[string]LLMProviderConfig{
						"openrouter": {Type: TypeOpenRouter, APIKey: "key-" + string(rune('a'+n)), Enabled: true},
					},
				})
			}(i)
			go func() {
				defer wg.Done()
				r.GetLLM("openrouter") // May fail, that's ok
			}()
		}
		wg.Wait()
	})
}
