package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/server/endpoints"
	"github.com/jackzampolin/primer/internal/store"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Browse, complete and export processed chunks",
}

var (
	listStart     int
	listEnd       int
	listMatch     string
	listCompleted bool
	listPending   bool
)

var chunksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed chunks",
	Long: `List processed chunks in line order.

--match takes a glob over chunk ids:
  primer chunks list --match 'chunk_1??_*'     # chunks starting at lines 100-199
  primer chunks list --start 500 --pending`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		filter := store.ChunkFilter{StartLine: listStart, EndLine: listEnd, Match: listMatch}
		switch {
		case listCompleted && listPending:
			return fmt.Errorf("--completed and --pending are mutually exclusive")
		case listCompleted:
			filter.Completed = &listCompleted
		case listPending:
			completed := false
			filter.Completed = &completed
		}

		chunks, err := a.Store.ListChunks(cmd.Context())
		if err != nil {
			return err
		}
		if chunks, err = filter.Apply(chunks); err != nil {
			return err
		}

		resp := endpoints.ChunksResponse{Chunks: make([]endpoints.ChunkSummary, len(chunks)), Total: len(chunks)}
		for i, c := range chunks {
			resp.Chunks[i] = endpoints.SummarizeChunk(c)
		}
		return api.Output(resp)
	},
}

var chunksGetCmd = &cobra.Command{
	Use:   "get <chunk-id>",
	Short: "Show a processed chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		chunk, err := a.Store.GetChunk(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("chunk %s: %w", args[0], err)
		}
		return api.Output(chunk)
	},
}

var chunksCompleteCmd = &cobra.Command{
	Use:   "complete <chunk-id>",
	Short: "Mark a chunk as reviewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		chunk, err := a.Orchestrator.MarkCompleted(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.Output(chunk)
	},
}

var (
	exportFile   string
	exportStdout bool
)

var chunksExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every chunk as one JSON document",
	Long: `Export the whole chunk catalog as JSON.

Without --file the export is written to ~/.primer/exports/chunks_<timestamp>.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		if exportStdout {
			_, err := a.Orchestrator.ExportChunks(cmd.Context(), os.Stdout)
			return err
		}

		path := exportFile
		if path == "" {
			path = a.Home.ExportPath(time.Now())
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		n, err := a.Orchestrator.ExportChunks(cmd.Context(), f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d chunks to %s\n", n, path)
		return nil
	},
}

func init() {
	chunksListCmd.Flags().IntVar(&listStart, "start", 0, "Only chunks starting at or after this line")
	chunksListCmd.Flags().IntVar(&listEnd, "end", 0, "Only chunks ending at or before this line")
	chunksListCmd.Flags().StringVar(&listMatch, "match", "", "Glob over chunk ids")
	chunksListCmd.Flags().BoolVar(&listCompleted, "completed", false, "Only completed chunks")
	chunksListCmd.Flags().BoolVar(&listPending, "pending", false, "Only chunks not yet completed")

	chunksExportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Output file")
	chunksExportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write to stdout instead of a file")

	chunksCmd.AddCommand(chunksListCmd, chunksGetCmd, chunksCompleteCmd, chunksExportCmd)
	rootCmd.AddCommand(chunksCmd)
}

