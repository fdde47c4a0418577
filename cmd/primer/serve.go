package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the primer server",
	Long: `Start the primer HTTP server.

The server exposes the pipeline to "primer api" commands and other local
clients. At most one background run (range, resume or all-stages) is active
at a time. Config file changes reload the provider registry.

The server provides:
  - /health          - Basic server health check
  - /status          - Providers, source, cursor and current run
  - /api/process     - Start, inspect and cancel background runs
  - /api/stages      - Run one stage on one chunk
  - /api/chunks      - Browse, complete and export chunks

Examples:
  primer serve                          # Start on default port 8080
  primer serve --port 3000              # Start on custom port
  primer serve --source guide.md        # Serve a specific document`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		a, err := openApp(cmd, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Config.ConfigFile() != "" {
			a.Config.WatchConfig()
		}

		srv, err := server.New(server.Config{
			Host:     serveHost,
			Port:     servePort,
			Services: a.Services,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
