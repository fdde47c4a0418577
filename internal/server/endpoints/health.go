package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/pipeline"
	"github.com/jackzampolin/primer/internal/providers"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/state"
	"github.com/jackzampolin/primer/internal/store"
	"github.com/jackzampolin/primer/internal/svcctx"
	"github.com/jackzampolin/primer/internal/types"
)

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string                 `json:"server"`
	Providers ProvidersStatus        `json:"providers"`
	Source    SourceStatus           `json:"source"`
	Storage   string                 `json:"storage,omitempty"`
	State     *types.ProcessingState `json:"state,omitempty"`
	Run       *pipeline.RunStatus    `json:"run,omitempty"`
}

// ProvidersStatus shows registered LLM providers and their rate limiters.
type ProvidersStatus struct {
	Default      string                                 `json:"default,omitempty"`
	LLM          []string                               `json:"llm"`
	RateLimiters map[string]providers.RateLimiterStatus `json:"rate_limiters,omitempty"`
}

// SourceStatus describes the loaded source document.
type SourceStatus struct {
	Loaded     bool   `json:"loaded"`
	Path       string `json:"path,omitempty"`
	TotalLines int    `json:"total_lines"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server: "running",
	}

	if registry := svcctx.RegistryFrom(ctx); registry != nil {
		resp.Providers.LLM = registry.ListLLM()
		resp.Providers.RateLimiters = registry.RateLimiters()
	}
	if cfg := svcctx.ConfigFrom(ctx); cfg != nil {
		c := cfg.Get()
		resp.Providers.Default = c.Defaults.LLMProvider
		resp.Storage = c.Storage.Driver
	}
	if orch := svcctx.OrchestratorFrom(ctx); orch != nil && orch.Document() != nil {
		doc := orch.Document()
		resp.Source = SourceStatus{Loaded: true, Path: doc.Path, TotalLines: doc.LineCount()}
	}
	if sm := svcctx.StateFrom(ctx); sm != nil {
		st, err := sm.GetState(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.State = st
	}
	if runner := svcctx.RunnerFrom(ctx); runner != nil {
		run := runner.Status()
		resp.Run = &run
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeErr maps a pipeline or storage error to its HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, pipeline.ErrStageNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, segment.ErrInvalidRange),
		errors.Is(err, segment.ErrInvalidChunkSize),
		errors.Is(err, state.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
