package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/pipeline"
)

var (
	processStart     int
	processEnd       int
	processChunkSize int
	processDelay     float64
	processFollow    bool
	processResume    bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract theory from a line range of the source document",
	Long: `Extract theory from [start, end) one chunk at a time.

A chunk that fails is logged and skipped; the run continues with the next
chunk. The cursor advances after every saved chunk, so --resume picks up
after the last saved chunk. Failed spans are listed in the report; re-run
them with --start and --end.

Examples:
  primer process --source guide.md --end 500          # Lines [0,500) in 100-line chunks
  primer process --start 200 --end 400 --chunk-size 50
  primer process --resume                             # From the cursor to the end
  primer process --resume --follow --delay 5          # Follow logical block hints`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		a, err := openApp(cmd, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := a.Config.Get()
		req := pipeline.RangeRequest{
			StartLine:         processStart,
			EndLine:           processEnd,
			ChunkSizeLines:    cfg.Defaults.ChunkSizeLines,
			Delay:             cfg.Delay(),
			FollowSuggestions: processFollow,
			OnResult:          logResult(logger),
		}
		if cmd.Flags().Changed("chunk-size") {
			req.ChunkSizeLines = processChunkSize
		}
		if cmd.Flags().Changed("delay") {
			req.Delay = time.Duration(processDelay * float64(time.Second))
		}

		var report *pipeline.Report
		if processResume {
			report, err = a.Processor.Resume(cmd.Context(), req)
		} else {
			if !cmd.Flags().Changed("end") {
				return fmt.Errorf("--end is required unless --resume is set")
			}
			report, err = a.Processor.ProcessRange(cmd.Context(), req)
		}
		if err != nil {
			return err
		}
		return api.Output(report)
	},
}

// logResult prints one line per stage result as a batch progresses.
func logResult(logger *slog.Logger) func(*pipeline.Result) {
	return func(res *pipeline.Result) {
		if res.OK() {
			logger.Info("stage ok", "stage", res.Stage, "chunk_id", res.ChunkID,
				"span", res.Span.String(), "duration", res.Duration.Round(time.Millisecond))
			return
		}
		logger.Warn("stage failed", "stage", res.Stage, "chunk_id", res.ChunkID,
			"span", res.Span.String(), "error", res.FailureMessage())
	}
}

func init() {
	processCmd.Flags().IntVar(&processStart, "start", 0, "First line (0-based, inclusive)")
	processCmd.Flags().IntVar(&processEnd, "end", 0, "Last line (exclusive); with --resume, 0 means end of document")
	processCmd.Flags().IntVar(&processChunkSize, "chunk-size", 0, "Lines per chunk (default from config)")
	processCmd.Flags().Float64Var(&processDelay, "delay", 0, "Seconds to wait between chunks (default from config)")
	processCmd.Flags().BoolVar(&processFollow, "follow", false, "End chunks at the suggested logical block boundary")
	processCmd.Flags().BoolVar(&processResume, "resume", false, "Continue from the persisted cursor")

	rootCmd.AddCommand(processCmd)
}
