package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/maintenance"
	"clipforge/internal/queue"
)

func newClearCommand(cmdCtx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every queue entry, job record, and counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to clear the queue without --yes")
			}
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				deleted, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys\n", deleted)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the destructive clear")
	return cmd
}

func newSweepCommand(cmdCtx *commandContext) *cobra.Command {
	var dryRun bool
	var maxAgeDays int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Prune expired job records, old media, and stale logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				logger, err := cmdCtx.ensureLogger()
				if err != nil {
					return err
				}

				opts := maintenance.Options{DryRun: dryRun}
				if maxAgeDays > 0 {
					opts.MaxAge = time.Duration(maxAgeDays) * 24 * time.Hour
				}
				result, err := maintenance.NewSweeper(cfg, store, logger).Run(cmd.Context(), opts)
				if err != nil {
					return err
				}

				verb := "removed"
				if dryRun {
					verb = "would remove"
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s %d job records, %d media dirs, %d empty dirs, %d temp files, %d log files\n",
					verb, result.JobRecords, result.MediaDirs, result.EmptyDirs,
					result.TempFiles, result.LogFiles)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without removing anything")
	cmd.Flags().IntVar(&maxAgeDays, "max-age", 0, "Override the media age cutoff in days")
	return cmd
}
