package llmcall

import "sort"

// Usage aggregates a set of calls.
type Usage struct {
	Count        int     `json:"count"`
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	latencyMs int
}

func (u *Usage) add(c *Call) {
	u.Count++
	if c.Success {
		u.SuccessCount++
	} else {
		u.ErrorCount++
	}
	u.InputTokens += c.InputTokens
	u.OutputTokens += c.OutputTokens
	u.CostUSD += c.CostUSD
	u.latencyMs += c.LatencyMs
	u.AvgLatencyMs = float64(u.latencyMs) / float64(u.Count)
}

// StageUsage is the usage of one stage.
type StageUsage struct {
	Stage string `json:"stage"`
	Usage
}

// Summary is the usage of every call plus a per-stage breakdown.
type Summary struct {
	Total   Usage        `json:"total"`
	ByStage []StageUsage `json:"by_stage"`
}

// Summarize aggregates calls. Stages are sorted by name; calls without a
// stage are counted under "".
func Summarize(calls []Call) Summary {
	byStage := make(map[string]*StageUsage)
	var s Summary
	for i := range calls {
		c := &calls[i]
		s.Total.add(c)
		su, ok := byStage[c.Stage]
		if !ok {
			su = &StageUsage{Stage: c.Stage}
			byStage[c.Stage] = su
		}
		su.add(c)
	}
	s.ByStage = make([]StageUsage, 0, len(byStage))
	for _, su := range byStage {
		s.ByStage = append(s.ByStage, *su)
	}
	sort.Slice(s.ByStage, func(i, j int) bool { return s.ByStage[i].Stage < s.ByStage[j].Stage })
	return s
}
