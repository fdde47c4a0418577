package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/store"
	"github.com/jackzampolin/primer/internal/svcctx"
	"github.com/jackzampolin/primer/internal/types"
)

// ChunkSummary is the listing view of a processed chunk.
type ChunkSummary struct {
	ID             string    `json:"id"`
	StartLine      int       `json:"start_line"`
	EndLine        int       `json:"end_line"`
	DisplayEndLine int       `json:"display_end_line"`
	Theory         int       `json:"theory"`
	Questions      int       `json:"questions"`
	Tasks          int       `json:"tasks"`
	Completed      bool      `json:"completed"`
	ProcessedDate  time.Time `json:"processed_date"`
}

// ChunksResponse contains a list of chunk summaries.
type ChunksResponse struct {
	Chunks []ChunkSummary `json:"chunks"`
	Total  int            `json:"total"`
}

// SummarizeChunk reduces a chunk to its counts.
func SummarizeChunk(c *types.ProcessedChunk) ChunkSummary {
	return ChunkSummary{
		ID:             c.ID,
		StartLine:      c.StartLine,
		EndLine:        c.EndLine,
		DisplayEndLine: c.DisplayEndLine,
		Theory:         len(c.Theory),
		Questions:      len(c.Questions),
		Tasks:          len(c.Tasks),
		Completed:      c.Completed,
		ProcessedDate:  c.ProcessedDate,
	}
}

// ListChunksEndpoint handles GET /api/chunks.
type ListChunksEndpoint struct{ chunksGroup }

func (e *ListChunksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chunks", e.handler
}

func (e *ListChunksEndpoint) RequiresInit() bool { return true }

func (e *ListChunksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusInternalServerError, "store not available")
		return
	}

	q := r.URL.Query()
	filter := store.ChunkFilter{Match: q.Get("match")}
	for _, p := range []struct {
		key string
		dst *int
	}{{"start", &filter.StartLine}, {"end", &filter.EndLine}} {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q must be a non-negative integer", p.key, v))
				return
			}
			*p.dst = n
		}
	}
	if v := q.Get("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid completed filter: %q must be true or false", v))
			return
		}
		filter.Completed = &b
	}

	chunks, err := st.ListChunks(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	chunks, err = filter.Apply(chunks)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ChunksResponse{Chunks: make([]ChunkSummary, len(chunks)), Total: len(chunks)}
	for i, c := range chunks {
		resp.Chunks[i] = SummarizeChunk(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListChunksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var start, end int
	var match string
	var completed, pending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if start > 0 {
				params.Set("start", strconv.Itoa(start))
			}
			if end > 0 {
				params.Set("end", strconv.Itoa(end))
			}
			if match != "" {
				params.Set("match", match)
			}
			if completed {
				params.Set("completed", "true")
			}
			if pending {
				params.Set("completed", "false")
			}

			path := "/api/chunks"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			client := api.NewClient(getServerURL())
			var resp ChunksResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "Only chunks starting at or after this line")
	cmd.Flags().IntVar(&end, "end", 0, "Only chunks ending at or before this line")
	cmd.Flags().StringVar(&match, "match", "", "Glob over chunk ids, e.g. 'chunk_1??_*'")
	cmd.Flags().BoolVar(&completed, "completed", false, "Only completed chunks")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only chunks not yet completed")
	return cmd
}

// GetChunkEndpoint handles GET /api/chunks/{id}.
type GetChunkEndpoint struct{ chunksGroup }

func (e *GetChunkEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chunks/{id}", e.handler
}

func (e *GetChunkEndpoint) RequiresInit() bool { return true }

func (e *GetChunkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusInternalServerError, "store not available")
		return
	}
	chunk, err := st.GetChunk(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

func (e *GetChunkEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <chunk-id>",
		Short: "Show a processed chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var chunk types.ProcessedChunk
			if err := client.Get(cmd.Context(), "/api/chunks/"+url.PathEscape(args[0]), &chunk); err != nil {
				return err
			}
			return api.Output(chunk)
		},
	}
}

// CompleteChunkEndpoint handles POST /api/chunks/{id}/complete.
type CompleteChunkEndpoint struct{ chunksGroup }

func (e *CompleteChunkEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chunks/{id}/complete", e.handler
}

func (e *CompleteChunkEndpoint) RequiresInit() bool { return true }

func (e *CompleteChunkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusInternalServerError, "orchestrator not available")
		return
	}
	chunk, err := orch.MarkCompleted(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummarizeChunk(chunk))
}

func (e *CompleteChunkEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <chunk-id>",
		Short: "Mark a chunk as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ChunkSummary
			path := "/api/chunks/" + url.PathEscape(args[0]) + "/complete"
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ExportChunksEndpoint handles GET /api/chunks/export.
type ExportChunksEndpoint struct{ chunksGroup }

func (e *ExportChunksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chunks/export", e.handler
}

func (e *ExportChunksEndpoint) RequiresInit() bool { return true }

func (e *ExportChunksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusInternalServerError, "orchestrator not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="chunks_%s.json"`, time.Now().UTC().Format("20060102T150405Z")))
	if _, err := orch.ExportChunks(r.Context(), w); err != nil {
		// Headers may already be sent; the log is all that is left.
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Error("chunk export failed", "error", err)
		}
	}
}

func (e *ExportChunksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every chunk as one JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = os.Stdout
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			client := api.NewClient(getServerURL())
			n, err := client.Download(cmd.Context(), "/api/chunks/export", out)
			if err != nil {
				return err
			}
			if file != "" {
				fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", n, file)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
