package endpoints

import (
	"github.com/jackzampolin/primer/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Processing state
		&GetStateEndpoint{},
		&ResetStateEndpoint{},

		// Background runs
		&StartProcessEndpoint{},
		&StartAllStagesEndpoint{},
		&ProcessStatusEndpoint{},
		&CancelProcessEndpoint{},

		// Stages
		&ListStagesEndpoint{},
		&RunStageEndpoint{},

		// Chunks
		&ListChunksEndpoint{},
		&ExportChunksEndpoint{},
		&GetChunkEndpoint{},
		&CompleteChunkEndpoint{},

		// LLM call history
		&ListLLMCallsEndpoint{},
		&LLMCallsSummaryEndpoint{},

		// Prompts
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}

// CLI command groups.

type stateGroup struct{}

func (stateGroup) Group() (string, string) { return "state", "Processing cursor commands" }

type processGroup struct{}

func (processGroup) Group() (string, string) { return "process", "Background extraction run commands" }

type stagesGroup struct{}

func (stagesGroup) Group() (string, string) { return "stages", "Pipeline stage commands" }

type chunksGroup struct{}

func (chunksGroup) Group() (string, string) { return "chunks", "Processed chunk commands" }

type llmcallsGroup struct{}

func (llmcallsGroup) Group() (string, string) { return "llmcalls", "LLM call history commands" }

type promptsGroup struct{}

func (promptsGroup) Group() (string, string) { return "prompts", "Prompt template commands" }
