package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"montage/internal/queue"
)

// submitSpec is the JSON shape accepted by `montage submit`.
type submitSpec struct {
	OwnerID           string        `json:"owner_id"`
	EntityID          string        `json:"entity_id,omitempty"`
	Scenes            []queue.Scene `json:"scenes"`
	Style             string        `json:"style,omitempty"`
	AspectRatio       string        `json:"aspect_ratio"`
	NarrationScript   string        `json:"narration_script,omitempty"`
	VoiceID           string        `json:"voice_id,omitempty"`
	BackgroundTrackID string        `json:"background_track_id,omitempty"`
	BackgroundVolume  int           `json:"background_volume,omitempty"`
	Priority          int           `json:"priority,omitempty"`
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "submit <spec.json>",
		Short: "Enqueue a generation job from a JSON spec file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read spec file: %w", err)
			}
			var spec submitSpec
			if err := json.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("parse spec file: %w", err)
			}
			if cmd.Flags().Changed("priority") {
				spec.Priority = priority
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.NewJob(cmd.Context(), queue.JobSpec{
				OwnerID:           spec.OwnerID,
				EntityID:          spec.EntityID,
				Scenes:            spec.Scenes,
				Style:             spec.Style,
				AspectRatio:       spec.AspectRatio,
				NarrationScript:   spec.NarrationScript,
				VoiceID:           spec.VoiceID,
				BackgroundTrackID: spec.BackgroundTrackID,
				BackgroundVolume:  spec.BackgroundVolume,
				Priority:          spec.Priority,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Job %d queued (%d scenes, priority %d)\n",
				job.ID, len(job.Scenes), job.Priority)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Override the spec's priority")
	return cmd
}
