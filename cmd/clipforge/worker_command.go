package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/webhook"
	"clipforge/internal/worker"
)

func newWorkerCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the worker pool until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmdCtx.withStore(ctx, func(store *queue.Store, cfg *config.Config) error {
				logger, err := cmdCtx.ensureLogger()
				if err != nil {
					return err
				}

				if results := deps.CheckAll(ctx, cfg, store); !deps.Healthy(results) {
					for _, result := range results {
						if !result.Available {
							fmt.Fprintf(cmd.ErrOrStderr(), "missing dependency %s: %s\n",
								result.Name, result.Detail)
						}
					}
					return fmt.Errorf("dependency check failed")
				}

				runner := ffmpeg.NewCLI(
					ffmpeg.WithBinary(cfg.FFmpeg.Binary),
					ffmpeg.WithTimeout(time.Duration(cfg.FFmpeg.Timeout)*time.Second))
				processor := pipeline.NewProcessor(cfg, runner, logger)
				notifier := webhook.NewNotifier(cfg.Webhook.Secret,
					time.Duration(cfg.Webhook.RequestTimeout)*time.Second, logger)

				pool := worker.NewPool(cfg, store, processor, notifier, logger)
				pool.Run(ctx)
				return nil
			})
		},
	}
}
