package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show aggregated queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:      %d\n", summary.Total)
			fmt.Fprintf(out, "Pending:    %d\n", summary.Pending)
			fmt.Fprintf(out, "Processing: %d\n", summary.Processing)
			fmt.Fprintf(out, "Completed:  %d\n", summary.Completed)
			fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
			return nil
		},
	}
}
