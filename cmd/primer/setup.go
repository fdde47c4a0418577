package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/app"
	"github.com/jackzampolin/primer/internal/config"
	"github.com/jackzampolin/primer/internal/home"
)

// loadConfig resolves the home directory and loads configuration from
// --config, ./config.yaml or the home directory, in that order.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, err
	}
	return h, mgr, nil
}

// openApp wires every service for a local command. The caller closes it.
func openApp(cmd *cobra.Command, logger *slog.Logger) (*app.App, error) {
	h, mgr, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if f := mgr.ConfigFile(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return app.Open(cmd.Context(), app.Options{
		Config:     mgr,
		Home:       h,
		SourcePath: sourcePath,
		Provider:   providerName,
		Logger:     logger,
	})
}
