package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %d: %s\n", job.ID, job.Status)
			fmt.Fprintf(out, "  Owner:    %s\n", job.OwnerID)
			fmt.Fprintf(out, "  Scenes:   %d\n", len(job.Scenes))
			fmt.Fprintf(out, "  Attempts: %d\n", job.Attempts)
			fmt.Fprintf(out, "  Created:  %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))

			percent, known := 0, false
			if progressStore, closeFn := ctx.progressStore(); progressStore != nil {
				defer closeFn()
				if p, ok, err := progressStore.Get(cmd.Context(), job.ID); err == nil && ok {
					percent, known = p, true
				}
			}
			if !known {
				// Terminal and not-yet-claimed states have fixed values even
				// when no progress entry exists (or it expired).
				switch job.Status {
				case queue.StatusPending:
					percent, known = 0, true
				case queue.StatusCompleted:
					percent, known = 100, true
				}
			}
			if known {
				fmt.Fprintf(out, "  Progress: %d%%\n", percent)
			}
			if job.OutputURL != "" {
				fmt.Fprintf(out, "  Output:    %s\n", job.OutputURL)
				fmt.Fprintf(out, "  Thumbnail: %s\n", job.ThumbnailURL)
				fmt.Fprintf(out, "  Duration:  %.1fs\n", job.DurationSeconds)
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
			}
			return nil
		},
	}
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}
