package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/providers"
)

// ClientSource resolves a named LLM client. *providers.Registry satisfies it.
type ClientSource interface {
	GetLLM(name string) (providers.LLMClient, error)
}

// ProviderConfig configures a ProviderBackend.
type ProviderConfig struct {
	Source   ClientSource
	Provider string // registry name of the client to use
	Model    string // optional model override
	Recorder *llmcall.Recorder
	Logger   *slog.Logger
}

// ProviderBackend adapts a providers.LLMClient to the Backend contract.
// The client is resolved from the source on Initialize, so a hot-reloaded
// registry takes effect on the next Initialize.
type ProviderBackend struct {
	source   ClientSource
	provider string
	model    string
	recorder *llmcall.Recorder
	logger   *slog.Logger

	mu     sync.RWMutex
	client providers.LLMClient
}

// NewProviderBackend creates an uninitialized backend.
func NewProviderBackend(cfg ProviderConfig) *ProviderBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderBackend{
		source:   cfg.Source,
		provider: cfg.Provider,
		model:    cfg.Model,
		recorder: cfg.Recorder,
		logger:   logger,
	}
}

// Name returns the configured provider name.
func (b *ProviderBackend) Name() string {
	return b.provider
}

// IsInitialized reports whether Initialize has resolved a client.
func (b *ProviderBackend) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client != nil
}

// Initialize resolves the provider's client.
func (b *ProviderBackend) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.source == nil {
		return fmt.Errorf("%w: no provider registry", ErrBackendUnavailable)
	}
	client, err := b.source.GetLLM(b.provider)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	b.logger.Debug("backend initialized", "provider", b.provider, "client", client.Name())
	return nil
}

// ProcessContent sends prompt as a single user message and returns the raw
// response text. Recording options attached to ctx with llmcall.WithOptions
// label the recorded call.
func (b *ProviderBackend) ProcessContent(ctx context.Context, prompt string, opts Options) (string, error) {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return "", fmt.Errorf("%w: %s not initialized", ErrBackendUnavailable, b.provider)
	}

	opts = opts.withDefaults()
	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	result, err := client.Chat(callCtx, &providers.ChatRequest{
		Messages:    providers.UserPrompt(prompt),
		Model:       b.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	})
	b.record(ctx, result, err, opts)

	if err != nil {
		return "", b.classify(ctx, callCtx, err)
	}
	return result.Content, nil
}

func (b *ProviderBackend) record(ctx context.Context, result *providers.ChatResult, err error, opts Options) {
	if b.recorder == nil {
		return
	}
	if result == nil {
		result = &providers.ChatResult{Provider: b.provider}
	}
	if err != nil && result.ErrorMessage == "" {
		result.ErrorMessage = err.Error()
	}
	recOpts, _ := llmcall.OptionsFrom(ctx)
	temp := opts.Temperature
	recOpts.Temperature = &temp
	b.recorder.Record(result, recOpts)
}

// classify maps a client error onto the backend error taxonomy. Cancellation
// of the caller's context is returned as-is.
func (b *ProviderBackend) classify(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, b.provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, b.provider, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, b.provider, err)
	}
	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, b.provider, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrBackendError, b.provider, err)
}

var _ Backend = (*ProviderBackend)(nil)
