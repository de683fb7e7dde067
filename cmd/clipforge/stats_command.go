package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/queue"
)

func newStatsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth and lifetime counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{
					{"pending", strconv.FormatInt(stats.Pending, 10)},
					{"processing", strconv.FormatInt(stats.Processing, 10)},
					{"delayed", strconv.FormatInt(stats.Delayed, 10)},
					{"dead letter", strconv.FormatInt(stats.DeadLetter, 10)},
					{"enqueued", strconv.FormatInt(stats.Enqueued, 10)},
					{"completed", strconv.FormatInt(stats.Completed, 10)},
					{"failed", strconv.FormatInt(stats.Failed, 10)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"State", "Jobs"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newBatchCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <batch-id>",
		Short: "Show progress for one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				progress, err := store.BatchStats(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				state := "in progress"
				if progress.Done {
					state = "done"
				}
				rows := [][]string{
					{"total", strconv.FormatInt(progress.Total, 10)},
					{"completed", strconv.FormatInt(progress.Completed, 10)},
					{"failed", strconv.FormatInt(progress.Failed, 10)},
					{"pending", strconv.FormatInt(progress.Pending, 10)},
					{"state", state},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{progress.BatchID, ""}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newDeadLetterCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "dead-letter",
		Short: "List jobs that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				jobs, err := store.DeadLetterJobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "dead letter queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						strconv.FormatInt(job.Payload.PostID, 10),
						strconv.Itoa(job.Attempts),
						time.Unix(job.FinishedAt, 0).Format(time.RFC3339),
						job.LastError,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Post", "Attempts", "Failed At", "Error"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 50, "Maximum jobs to list")
	return cmd
}
