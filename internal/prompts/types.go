// Package prompts renders the instruction text sent to the backend for each stage.
//
// Embedded .tmpl files are the defaults. A Builder can replace any of them with
// an operator override (for example from ~/.primer/prompts/<key>.tmpl); the hash
// of the active text is recorded with every backend call for traceability.
package prompts

// EmbeddedPrompt describes a prompt template known to the builder.
type EmbeddedPrompt struct {
	Key         string   `json:"key"`
	Text        string   `json:"text"`
	Description string   `json:"description,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash"`
	IsOverride  bool     `json:"is_override"`
}
