package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/pipeline"
	"github.com/jackzampolin/primer/internal/svcctx"
)

// StartProcessRequest is the request body for POST /api/process.
type StartProcessRequest struct {
	StartLine      int `json:"start_line"`
	EndLine        int `json:"end_line"`
	ChunkSizeLines int `json:"chunk_size_lines,omitempty"`
	// DelaySeconds overrides defaults.delay_seconds when set.
	DelaySeconds      *float64 `json:"delay_seconds,omitempty"`
	FollowSuggestions bool     `json:"follow_suggestions,omitempty"`
	// Resume starts from the persisted cursor; StartLine is ignored and an
	// EndLine of 0 means the end of the document.
	Resume bool `json:"resume,omitempty"`
}

// StartAllStagesRequest is the request body for POST /api/process/stages.
type StartAllStagesRequest struct {
	StartLine    int      `json:"start_line"`
	EndLine      int      `json:"end_line"`
	DelaySeconds *float64 `json:"delay_seconds,omitempty"`
}

// CancelProcessResponse reports whether a run was cancelled.
type CancelProcessResponse struct {
	Cancelled bool `json:"cancelled"`
}

// delay resolves an optional per-request delay against the configured default.
func delay(r *http.Request, seconds *float64) time.Duration {
	if seconds != nil {
		return time.Duration(*seconds * float64(time.Second))
	}
	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil {
		return cfg.Get().Delay()
	}
	return 0
}

// chunkSize resolves an unset chunk size against the configured default.
func chunkSize(r *http.Request, n int) int {
	if n != 0 {
		return n
	}
	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil {
		return cfg.Get().Defaults.ChunkSizeLines
	}
	return pipeline.DefaultChunkSizeLines
}

// StartProcessEndpoint handles POST /api/process.
type StartProcessEndpoint struct{ processGroup }

func (e *StartProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/process", e.handler
}

func (e *StartProcessEndpoint) RequiresInit() bool { return true }

func (e *StartProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StartProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusInternalServerError, "runner not available")
		return
	}

	rr := pipeline.RangeRequest{
		StartLine:         req.StartLine,
		EndLine:           req.EndLine,
		ChunkSizeLines:    chunkSize(r, req.ChunkSizeLines),
		Delay:             delay(r, req.DelaySeconds),
		FollowSuggestions: req.FollowSuggestions,
	}
	if rr.Delay < 0 {
		writeError(w, http.StatusBadRequest, "delay_seconds must not be negative")
		return
	}

	var (
		status pipeline.RunStatus
		err    error
	)
	if req.Resume {
		status, err = runner.StartResume(rr)
	} else {
		status, err = runner.StartRange(rr)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (e *StartProcessEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req StartProcessRequest
	var delaySeconds float64
	var wait bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Extract theory from a line range in the background",
		Long: `Start a background extraction run over [start, end).

With --resume the run continues from the persisted cursor instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("delay") {
				req.DelaySeconds = &delaySeconds
			}
			client := api.NewClient(getServerURL())
			var status pipeline.RunStatus
			if err := client.Post(cmd.Context(), "/api/process", req, &status); err != nil {
				return err
			}
			if wait {
				return waitForRun(cmd.Context(), client, status.ID)
			}
			return api.Output(status)
		},
	}
	cmd.Flags().IntVar(&req.StartLine, "start", 0, "First line (0-based, inclusive)")
	cmd.Flags().IntVar(&req.EndLine, "end", 0, "Last line (exclusive)")
	cmd.Flags().IntVar(&req.ChunkSizeLines, "chunk-size", 0, "Lines per chunk (default from config)")
	cmd.Flags().Float64Var(&delaySeconds, "delay", 0, "Seconds to wait between chunks (default from config)")
	cmd.Flags().BoolVar(&req.FollowSuggestions, "follow", false, "End chunks at the suggested logical block boundary")
	cmd.Flags().BoolVar(&req.Resume, "resume", false, "Continue from the persisted cursor")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish and print its report")
	return cmd
}

// StartAllStagesEndpoint handles POST /api/process/stages.
type StartAllStagesEndpoint struct{ processGroup }

func (e *StartAllStagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/process/stages", e.handler
}

func (e *StartAllStagesEndpoint) RequiresInit() bool { return true }

func (e *StartAllStagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StartAllStagesRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusInternalServerError, "runner not available")
		return
	}

	sr := pipeline.StagesRequest{
		StartLine: req.StartLine,
		EndLine:   req.EndLine,
		Delay:     delay(r, req.DelaySeconds),
	}
	if sr.StartLine < 0 || (sr.EndLine != 0 && sr.EndLine <= sr.StartLine) || sr.Delay < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid stages request: start=%d end=%d delay=%s", sr.StartLine, sr.EndLine, sr.Delay))
		return
	}

	status, err := runner.StartAllStages(sr)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (e *StartAllStagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req StartAllStagesRequest
	var delaySeconds float64
	var wait bool
	cmd := &cobra.Command{
		Use:   "all-stages",
		Short: "Run enhancement, question and task generation over existing chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("delay") {
				req.DelaySeconds = &delaySeconds
			}
			client := api.NewClient(getServerURL())
			var status pipeline.RunStatus
			if err := client.Post(cmd.Context(), "/api/process/stages", req, &status); err != nil {
				return err
			}
			if wait {
				return waitForRun(cmd.Context(), client, status.ID)
			}
			return api.Output(status)
		},
	}
	cmd.Flags().IntVar(&req.StartLine, "start", 0, "Only chunks starting at or after this line")
	cmd.Flags().IntVar(&req.EndLine, "end", 0, "Only chunks ending at or before this line (0 = all)")
	cmd.Flags().Float64Var(&delaySeconds, "delay", 0, "Seconds to wait between stage calls (default from config)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish and print its report")
	return cmd
}

// ProcessStatusEndpoint handles GET /api/process.
type ProcessStatusEndpoint struct{ processGroup }

func (e *ProcessStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/process", e.handler
}

func (e *ProcessStatusEndpoint) RequiresInit() bool { return true }

func (e *ProcessStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusInternalServerError, "runner not available")
		return
	}
	writeJSON(w, http.StatusOK, runner.Status())
}

func (e *ProcessStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current or most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var status pipeline.RunStatus
			if err := client.Get(cmd.Context(), "/api/process", &status); err != nil {
				return err
			}
			return api.Output(status)
		},
	}
}

// CancelProcessEndpoint handles DELETE /api/process.
type CancelProcessEndpoint struct{ processGroup }

func (e *CancelProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/process", e.handler
}

func (e *CancelProcessEndpoint) RequiresInit() bool { return true }

func (e *CancelProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusInternalServerError, "runner not available")
		return
	}
	writeJSON(w, http.StatusOK, CancelProcessResponse{Cancelled: runner.Cancel()})
}

func (e *CancelProcessEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active run",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/process"); err != nil {
				return err
			}
			fmt.Println("Cancel requested")
			return nil
		},
	}
}

// waitForRun polls the run status until run id finishes, then prints it.
func waitForRun(ctx context.Context, client *api.Client, id string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		var status pipeline.RunStatus
		if err := client.Get(ctx, "/api/process", &status); err != nil {
			return err
		}
		if status.ID != id || !status.Running {
			if status.Error != "" {
				api.Output(status)
				return fmt.Errorf("run %s: %s", status.ID, status.Error)
			}
			return api.Output(status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
