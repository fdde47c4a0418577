package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/primer/internal/api"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the processing cursor",
}

var stateGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the processing cursor",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.State.GetState(cmd.Context())
		if err != nil {
			return err
		}
		return api.Output(st)
	},
}

var resetClearChunks bool

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the processing cursor to line 0",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.State.Reset(cmd.Context(), resetClearChunks)
		if err != nil {
			return err
		}
		return api.Output(st)
	},
}

func init() {
	stateResetCmd.Flags().BoolVar(&resetClearChunks, "clear-chunks", false, "Also delete every processed chunk")

	stateCmd.AddCommand(stateGetCmd, stateResetCmd)
	rootCmd.AddCommand(stateCmd)
}
