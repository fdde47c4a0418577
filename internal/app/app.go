// Package app assembles the primer services from configuration. The server
// and the local CLI commands share this wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/primer/internal/backend"
	"github.com/jackzampolin/primer/internal/config"
	"github.com/jackzampolin/primer/internal/home"
	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/pipeline"
	"github.com/jackzampolin/primer/internal/prompts"
	"github.com/jackzampolin/primer/internal/providers"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/state"
	"github.com/jackzampolin/primer/internal/store"
	"github.com/jackzampolin/primer/internal/svcctx"
)

// Options selects what Open wires together.
type Options struct {
	Config *config.Manager
	Home   *home.Dir

	// SourcePath overrides source.path from config.
	SourcePath string
	// Provider overrides defaults.llm_provider from config.
	Provider string

	Logger *slog.Logger
}

// App owns the assembled services and their shutdown.
type App struct {
	*svcctx.Services
	recorder *llmcall.Recorder
}

// Open builds every service. The provider registry follows config changes.
func Open(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil || opts.Home == nil {
		return nil, fmt.Errorf("config and home are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config.Get()

	if err := opts.Home.EnsureExists(); err != nil {
		return nil, err
	}

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Reload(cfg.ToProviderRegistryConfig())
	opts.Config.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		logger.Info("provider registry reloaded from config")
	})

	st, err := store.Open(ctx, cfg.StoreConfig(opts.Home.DatabasePath()))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	builder := prompts.NewBuilder()
	if n, err := builder.LoadOverrides(opts.Home.PromptsDir()); err != nil {
		st.Close()
		return nil, err
	} else if n > 0 {
		logger.Info("loaded prompt overrides", "count", n, "dir", opts.Home.PromptsDir())
	}

	var doc *segment.Document
	sourcePath := opts.SourcePath
	if sourcePath == "" {
		sourcePath = cfg.Source.Path
	}
	if sourcePath != "" {
		doc, err = segment.LoadDocument(sourcePath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load source: %w", err)
		}
		logger.Info("source loaded", "path", sourcePath, "total_lines", doc.LineCount())
	}

	provider := opts.Provider
	if provider == "" {
		provider = cfg.Defaults.LLMProvider
	}
	recorder := llmcall.NewRecorder(st, logger)
	be := backend.NewProviderBackend(backend.ProviderConfig{
		Source:   registry,
		Provider: provider,
		Recorder: recorder,
		Logger:   logger,
	})

	orch, err := pipeline.NewOrchestrator(pipeline.Config{
		Backend:  be,
		Store:    st,
		Document: doc,
		Prompts:  builder,
		Options:  cfg.BackendOptions(),
		Logger:   logger,

		ChunkSizeLines: cfg.Defaults.ChunkSizeLines,
	})
	if err != nil {
		recorder.Stop()
		st.Close()
		return nil, err
	}
	sm := state.NewManager(st, logger)
	proc := pipeline.NewProcessor(orch, sm, logger)

	return &App{
		Services: &svcctx.Services{
			Config:       opts.Config,
			Home:         opts.Home,
			Registry:     registry,
			Store:        st,
			Prompts:      builder,
			State:        sm,
			Orchestrator: orch,
			Processor:    proc,
			Runner:       pipeline.NewRunner(proc, logger),
			Logger:       logger,
		},
		recorder: recorder,
	}, nil
}

// Close cancels any background run, flushes pending LLM call records and
// closes the store.
func (a *App) Close() error {
	if a.Runner.Cancel() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Runner.Wait(ctx); err != nil {
			a.Logger.Warn("background run did not stop", "error", err)
		}
	}
	a.recorder.Stop()
	return a.Store.Close()
}
