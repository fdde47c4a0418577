package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/pipeline"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/svcctx"
	"github.com/jackzampolin/primer/internal/types"
)

// StageInfo describes one registered stage.
type StageInfo struct {
	Name         string        `json:"name"`
	Kind         pipeline.Kind `json:"kind"`
	Description  string        `json:"description"`
	PromptKey    string        `json:"prompt_key"`
	Dependencies []string      `json:"dependencies,omitempty"`
}

// DescribeStage converts a registered stage to its API form.
func DescribeStage(s pipeline.Stage) StageInfo {
	return StageInfo{
		Name:         s.Name(),
		Kind:         s.Kind(),
		Description:  s.Description(),
		PromptKey:    s.PromptKey(),
		Dependencies: s.Dependencies(),
	}
}

// StagesResponse lists stages in dependency order.
type StagesResponse struct {
	Stages []StageInfo `json:"stages"`
}

// ListStagesEndpoint handles GET /api/stages.
type ListStagesEndpoint struct{ stagesGroup }

func (e *ListStagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stages", e.handler
}

func (e *ListStagesEndpoint) RequiresInit() bool { return true }

func (e *ListStagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusInternalServerError, "orchestrator not available")
		return
	}
	ordered, err := orch.Registry().GetOrdered()
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := StagesResponse{Stages: make([]StageInfo, len(ordered))}
	for i, s := range ordered {
		resp.Stages[i] = DescribeStage(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListStagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipeline stages in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StagesResponse
			if err := client.Get(cmd.Context(), "/api/stages", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RunStageRequest is the request body for POST /api/stages/{name}/run.
// Extraction reads StartLine and EndLine; every other stage reads ChunkID.
type RunStageRequest struct {
	ChunkID          string               `json:"chunk_id,omitempty"`
	StartLine        int                  `json:"start_line,omitempty"`
	EndLine          int                  `json:"end_line,omitempty"`
	FollowSuggestion bool                 `json:"follow_suggestion,omitempty"`
	Rewrite          types.RewriteOptions `json:"rewrite,omitempty"`
}

// RunStageResponse reports one synchronous stage run.
type RunStageResponse struct {
	Success bool             `json:"success"`
	Failure string           `json:"failure,omitempty"`
	Result  *pipeline.Result `json:"result"`
}

// RunStageEndpoint handles POST /api/stages/{name}/run.
type RunStageEndpoint struct{ stagesGroup }

func (e *RunStageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stages/{name}/run", e.handler
}

func (e *RunStageEndpoint) RequiresInit() bool { return true }

func (e *RunStageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "stage name is required")
		return
	}

	var req RunStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusInternalServerError, "orchestrator not available")
		return
	}

	res, err := orch.RunStage(r.Context(), name, pipeline.Input{
		ChunkID:          req.ChunkID,
		Span:             segment.Span{Start: req.StartLine, End: req.EndLine},
		Rewrite:          req.Rewrite,
		FollowSuggestion: req.FollowSuggestion,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunStageResponse{
		Success: res.OK(),
		Failure: res.FailureMessage(),
		Result:  res,
	})
}

func (e *RunStageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req RunStageRequest
	cmd := &cobra.Command{
		Use:   "run <stage> [chunk-id]",
		Short: "Run one stage synchronously",
		Long: `Run one stage and print its result.

theory-extraction takes --start and --end; every other stage takes a chunk id.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				req.ChunkID = args[1]
			}
			client := api.NewClient(getServerURL())
			var resp RunStageResponse
			path := "/api/stages/" + url.PathEscape(args[0]) + "/run"
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			if err := api.Output(resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("stage %s failed: %s", args[0], resp.Failure)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&req.StartLine, "start", 0, "First line (extraction only)")
	cmd.Flags().IntVar(&req.EndLine, "end", 0, "Last line, exclusive (extraction only)")
	cmd.Flags().BoolVar(&req.FollowSuggestion, "follow", false, "End the chunk at the suggested logical block boundary")
	applyRewrite := RewriteFlags(cmd, &req.Rewrite)
	cmd.PreRun = func(cmd *cobra.Command, args []string) { applyRewrite() }
	return cmd
}

// RewriteFlags registers the chunk-rewrite option flags on cmd. The returned
// func copies the parsed --question-types into opts and must run before opts
// is used.
func RewriteFlags(cmd *cobra.Command, opts *types.RewriteOptions) func() {
	var questionTypes []string
	f := cmd.Flags()
	f.StringVar(&opts.Instructions, "instructions", "", "Rewrite instructions")
	f.StringVar(&opts.Focus, "focus", "", "Rewrite focus")
	f.StringVar(&opts.Difficulty, "difficulty", "", "Rewrite target difficulty")
	f.StringSliceVar(&questionTypes, "question-types", nil, "Allowed question types: mcq, code, open, flashcard")
	f.BoolVar(&opts.EnhanceExamples, "enhance-examples", false, "Add or expand worked examples")
	f.BoolVar(&opts.SimplifyContent, "simplify", false, "Simplify wording")
	f.BoolVar(&opts.KeepIDs, "keep-ids", false, "Keep existing ids when rewriting")
	return func() {
		opts.QuestionTypes = nil
		for _, qt := range questionTypes {
			opts.QuestionTypes = append(opts.QuestionTypes, types.ParseQuestionType(qt))
		}
	}
}
