package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
	"github.com/jackzampolin/primer/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect stage prompt templates",
	Long: `Inspect the prompt templates sent to the backend.

Overrides are read from ~/.primer/prompts/<key>.tmpl and replace the
embedded default with the same key.`,
}

// activePrompts returns a builder with overrides from the home directory applied.
func activePrompts() (*prompts.Builder, error) {
	h, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	b := prompts.NewBuilder()
	if _, err := b.LoadOverrides(h.PromptsDir()); err != nil {
		return nil, err
	}
	return b, nil
}

type promptSummary struct {
	Key         string   `json:"key"`
	Description string   `json:"description,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash"`
	IsOverride  bool     `json:"is_override"`
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := activePrompts()
		if err != nil {
			return err
		}
		var out []promptSummary
		for _, p := range b.List() {
			out = append(out, promptSummary{
				Key:         p.Key,
				Description: p.Description,
				Variables:   p.Variables,
				Hash:        p.Hash,
				IsOverride:  p.IsOverride,
			})
		}
		return api.Output(out)
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the active text of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := activePrompts()
		if err != nil {
			return err
		}
		p, ok := b.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown prompt %q", args[0])
		}
		fmt.Print(p.Text)
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}
