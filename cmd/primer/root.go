package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
	sourcePath   string
	providerName string
)

var rootCmd = &cobra.Command{
	Use:   "primer",
	Short: "Turn technical documents into theory, questions and coding tasks",
	Long: `Primer walks a long technical document in line-range chunks and asks an
LLM to turn each chunk into study material.

The pipeline includes:
  - Theory extraction from numbered source spans
  - Theory enhancement with worked examples
  - Practice question and coding task generation
  - Operator-directed chunk rewrites

Progress is persisted, so an interrupted run resumes where it stopped.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.primer/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "primer home directory (default: ~/.primer)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging",
	)
	rootCmd.PersistentFlags().StringVar(
		&sourcePath, "source", "", "source document (default: source.path from config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&providerName, "provider", "", "LLM provider (default: defaults.llm_provider from config)",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. Logs go to stderr so that structured
// command output on stdout stays parseable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
