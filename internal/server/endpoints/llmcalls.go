package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/svcctx"
)

// LLMCallsResponse contains a list of LLM calls.
type LLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Total int            `json:"total"`
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{ llmcallsGroup }

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	calls, err := st.ListCalls(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}

	writeJSON(w, http.StatusOK, LLMCallsResponse{
		Calls: calls,
		Total: len(calls),
	})
}

// parseCallFilter reads the call filter query parameters shared by the
// list and summary endpoints.
func parseCallFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		ChunkID:   q.Get("chunk_id"),
		Stage:     q.Get("stage"),
		PromptKey: q.Get("prompt_key"),
		Provider:  q.Get("provider"),
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		filter.Success = &b
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %q must be an integer", v)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid offset: %q must be an integer", v)
		}
		filter.Offset = offset
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid after time: %q must be RFC3339 format (e.g., 2024-01-15T00:00:00Z)", v)
		}
		filter.After = &t
	}
	return filter, nil
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var chunkID, stage, promptKey, provider, after string
	var limit, offset int
	var successOnly, failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			params := url.Values{}
			if chunkID != "" {
				params.Set("chunk_id", chunkID)
			}
			if stage != "" {
				params.Set("stage", stage)
			}
			if promptKey != "" {
				params.Set("prompt_key", promptKey)
			}
			if provider != "" {
				params.Set("provider", provider)
			}
			if after != "" {
				params.Set("after", after)
			}
			if successOnly {
				params.Set("success", "true")
			}
			if failedOnly {
				params.Set("success", "false")
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}

			path := "/api/llmcalls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp LLMCallsResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&chunkID, "chunk-id", "", "Filter by chunk ID")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage name")
	cmd.Flags().StringVar(&promptKey, "prompt-key", "", "Filter by prompt key")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&after, "after", "", "Only calls after this RFC3339 timestamp")
	cmd.Flags().BoolVar(&successOnly, "success", false, "Only show successful calls")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed calls")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// LLMCallsSummaryEndpoint handles GET /api/llmcalls/summary.
type LLMCallsSummaryEndpoint struct{ llmcallsGroup }

func (e *LLMCallsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/summary", e.handler
}

func (e *LLMCallsSummaryEndpoint) RequiresInit() bool { return true }

func (e *LLMCallsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}
	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	calls, err := st.ListCalls(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, llmcall.Summarize(calls))
}

func (e *LLMCallsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var chunkID, stage, after string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize token usage, cost and failures per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if chunkID != "" {
				params.Set("chunk_id", chunkID)
			}
			if stage != "" {
				params.Set("stage", stage)
			}
			if after != "" {
				params.Set("after", after)
			}
			path := "/api/llmcalls/summary"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}
			var resp llmcall.Summary
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&chunkID, "chunk-id", "", "Filter by chunk ID")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage name")
	cmd.Flags().StringVar(&after, "after", "", "Only calls after this RFC3339 timestamp")
	return cmd
}
