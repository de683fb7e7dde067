package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/queue"
)

func newHealthCommand(cmdCtx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				health := store.CheckHealth(cmd.Context())

				if asJSON {
					encoder := json.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent("", "  ")
					if err := encoder.Encode(health); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), health.Status)
					for _, reason := range health.Reasons {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", reason)
					}
				}
				if health.Status == queue.HealthUnhealthy {
					return fmt.Errorf("queue is unhealthy")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newDoctorCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd.Context(), func(store *queue.Store, cfg *config.Config) error {
				results := deps.CheckAll(cmd.Context(), cfg, store)

				rows := make([][]string, 0, len(results))
				for _, result := range results {
					state := "ok"
					if !result.Available {
						state = "missing"
					}
					rows = append(rows, []string{result.Name, state, result.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Dependency", "Status", "Detail"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft}))

				if !deps.Healthy(results) {
					return fmt.Errorf("dependency check failed")
				}
				return nil
			})
		},
	}
}
