package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the committed watermarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.store.Load(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "State backend: %s\n", cfg.StateBackend)
		printWatermarks(cmd.OutOrStdout(), state)
		return nil
	},
}
