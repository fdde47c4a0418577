package llmcall

import (
	"sort"
	"time"
)

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	ChunkID   string
	Stage     string
	PromptKey string
	Provider  string
	After     *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Match reports whether call satisfies every set field of f.
func (f QueryFilter) Match(call *Call) bool {
	if f.ChunkID != "" && call.ChunkID != f.ChunkID {
		return false
	}
	if f.Stage != "" && call.Stage != f.Stage {
		return false
	}
	if f.PromptKey != "" && call.PromptKey != f.PromptKey {
		return false
	}
	if f.Provider != "" && call.Provider != f.Provider {
		return false
	}
	if f.After != nil && !call.Timestamp.After(*f.After) {
		return false
	}
	if f.Success != nil && call.Success != *f.Success {
		return false
	}
	return true
}

// Apply filters calls, orders them newest first, and applies offset and limit.
func (f QueryFilter) Apply(calls []Call) []Call {
	out := make([]Call, 0, len(calls))
	for i := range calls {
		if f.Match(&calls[i]) {
			out = append(out, calls[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Call{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
