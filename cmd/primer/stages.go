package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/pipeline"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/server/endpoints"
	"github.com/jackzampolin/primer/internal/types"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Run pipeline stages on existing chunks",
}

var stagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stages in dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ordered, err := pipeline.DefaultRegistry().GetOrdered()
		if err != nil {
			return err
		}
		resp := endpoints.StagesResponse{Stages: make([]endpoints.StageInfo, len(ordered))}
		for i, st := range ordered {
			resp.Stages[i] = endpoints.DescribeStage(st)
		}
		return api.Output(resp)
	},
}

var (
	allStagesStart int
	allStagesEnd   int
	allStagesDelay float64
)

var stagesAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Enhance theory, then generate questions and tasks for every chunk",
	Long: `Walk the selected chunks in line order and run theory enhancement,
question generation and task generation on each. A failing stage is logged
and the walk continues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		a, err := openApp(cmd, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		req := pipeline.StagesRequest{
			StartLine: allStagesStart,
			EndLine:   allStagesEnd,
			Delay:     a.Config.Get().Delay(),
			OnResult:  logResult(logger),
		}
		if cmd.Flags().Changed("delay") {
			req.Delay = time.Duration(allStagesDelay * float64(time.Second))
		}
		report, err := a.Processor.RunAllStages(cmd.Context(), req)
		if err != nil {
			return err
		}
		return api.Output(report)
	},
}

var (
	runStart   int
	runEnd     int
	runFollow  bool
	runRewrite types.RewriteOptions
)

var stagesRunCmd = &cobra.Command{
	Use:   "run <stage> [chunk-id]",
	Short: "Run one stage synchronously",
	Long: `Run one stage and print its result.

theory-extraction takes --start and --end; every other stage takes a chunk id.

Examples:
  primer stages run theory-extraction --start 100 --end 200
  primer stages run question-generation chunk_100_200_01hx...
  primer stages run chunk-rewrite chunk_100_200_01hx... --difficulty hard --question-types mcq,code --simplify`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		in := pipeline.Input{
			Span:             segment.Span{Start: runStart, End: runEnd},
			Rewrite:          runRewrite,
			FollowSuggestion: runFollow,
		}
		if len(args) == 2 {
			in.ChunkID = args[1]
		}
		res, err := a.Orchestrator.RunStage(cmd.Context(), args[0], in)
		if err != nil {
			return err
		}
		if err := api.Output(endpoints.RunStageResponse{
			Success: res.OK(),
			Failure: res.FailureMessage(),
			Result:  res,
		}); err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("stage %s failed: %w", args[0], res.Failure)
		}
		return nil
	},
}

func init() {
	stagesAllCmd.Flags().IntVar(&allStagesStart, "start", 0, "Only chunks starting at or after this line")
	stagesAllCmd.Flags().IntVar(&allStagesEnd, "end", 0, "Only chunks ending at or before this line (0 = all)")
	stagesAllCmd.Flags().Float64Var(&allStagesDelay, "delay", 0, "Seconds to wait between stage calls (default from config)")

	stagesRunCmd.Flags().IntVar(&runStart, "start", 0, "First line (extraction only)")
	stagesRunCmd.Flags().IntVar(&runEnd, "end", 0, "Last line, exclusive (extraction only)")
	stagesRunCmd.Flags().BoolVar(&runFollow, "follow", false, "End the chunk at the suggested logical block boundary")
	applyRewrite := endpoints.RewriteFlags(stagesRunCmd, &runRewrite)
	stagesRunCmd.PreRun = func(cmd *cobra.Command, args []string) { applyRewrite() }

	stagesCmd.AddCommand(stagesListCmd, stagesAllCmd, stagesRunCmd)
	rootCmd.AddCommand(stagesCmd)
}
