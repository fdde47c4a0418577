package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/svcctx"
	"github.com/jackzampolin/primer/internal/types"
)

// GetStateEndpoint handles GET /api/state.
type GetStateEndpoint struct{ stateGroup }

func (e *GetStateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/state", e.handler
}

func (e *GetStateEndpoint) RequiresInit() bool { return true }

func (e *GetStateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sm := svcctx.StateFrom(r.Context())
	if sm == nil {
		writeError(w, http.StatusInternalServerError, "state manager not available")
		return
	}
	st, err := sm.GetState(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (e *GetStateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the processing cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.ProcessingState
			if err := client.Get(cmd.Context(), "/api/state", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ResetStateRequest is the request body for POST /api/state/reset.
type ResetStateRequest struct {
	ClearChunks bool `json:"clear_chunks"`
}

// ResetStateEndpoint handles POST /api/state/reset.
type ResetStateEndpoint struct{ stateGroup }

func (e *ResetStateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/state/reset", e.handler
}

func (e *ResetStateEndpoint) RequiresInit() bool { return true }

func (e *ResetStateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ResetStateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	sm := svcctx.StateFrom(r.Context())
	if sm == nil {
		writeError(w, http.StatusInternalServerError, "state manager not available")
		return
	}
	if runner := svcctx.RunnerFrom(r.Context()); runner != nil && runner.Status().Running {
		writeError(w, http.StatusConflict, "cannot reset state while a run is in progress")
		return
	}

	st, err := sm.Reset(r.Context(), req.ClearChunks)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (e *ResetStateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var clearChunks bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the processing cursor to line 0",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.ProcessingState
			if err := client.Post(cmd.Context(), "/api/state/reset", ResetStateRequest{ClearChunks: clearChunks}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&clearChunks, "clear-chunks", false, "Also delete every processed chunk")
	return cmd
}
