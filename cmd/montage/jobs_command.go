package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var (
		owner  string
		entity string
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := queue.ListOptions{
				Owner:  owner,
				Entity: entity,
				Limit:  limit,
				Offset: offset,
			}
			if status != "" {
				parsed, ok := queue.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", status, statusNames())
				}
				opts.Status = parsed
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(result.Jobs))
			for _, job := range result.Jobs {
				detail := job.OutputURL
				if job.Status == queue.StatusFailed {
					detail = job.ErrorMessage
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					string(job.Status),
					job.OwnerID,
					strconv.Itoa(len(job.Scenes)),
					strconv.Itoa(job.Attempts),
					job.CreatedAt.Local().Format("2006-01-02 15:04"),
					truncate(detail, 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Owner", "Scenes", "Attempts", "Created", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d of %d job(s)", len(result.Jobs), result.Total)
			if result.HasMore {
				fmt.Fprintf(out, " (more available, use --offset %d)", offset+len(result.Jobs))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner id")
	cmd.Flags().StringVar(&entity, "entity", "", "Filter by entity id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status ("+statusNames()+")")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")
	return cmd
}

func statusNames() string {
	statuses := queue.AllStatuses()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
