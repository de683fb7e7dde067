package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/queue"
)

func newEnqueueCommand(cmdCtx *commandContext) *cobra.Command {
	var payload queue.Payload

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue one video for compression",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				job, err := store.Enqueue(cmd.Context(), payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s for post %d\n", job.ID, payload.PostID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&payload.PostID, "post-id", 0, "Post the video belongs to")
	cmd.Flags().StringVar(&payload.VideoURL, "video-url", "", "Source video URL")
	cmd.Flags().StringVar(&payload.ThumbnailURL, "thumbnail-url", "", "Source thumbnail URL")
	cmd.Flags().StringVar(&payload.WebhookURL, "webhook-url", "", "Completion webhook URL")
	cmd.MarkFlagRequired("post-id")
	cmd.MarkFlagRequired("video-url")

	return cmd
}

func newBulkCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <payloads.json>",
		Short: "Queue a batch of videos from a JSON array file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			var payloads []queue.Payload
			if err := json.Unmarshal(data, &payloads); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				batchID, jobs, err := store.EnqueueBatch(cmd.Context(), payloads)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %d jobs as %s\n", len(jobs), batchID)
				return nil
			})
		},
	}
}
