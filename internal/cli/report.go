package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/ethics-review/internal/container"
)

func newReportCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export workflow reports",
	}
	cmd.AddCommand(newStalledReportCommand(app))
	return cmd
}

func newStalledReportCommand(app *App) *cobra.Command {
	var (
		threshold time.Duration
		out       string
	)

	cmd := &cobra.Command{
		Use:   "stalled",
		Short: "Write a spreadsheet of applications stalled at one stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				if threshold == 0 {
					threshold = c.Config().Sweeper.Threshold
				}
				rep, err := c.Services().Reports.StallReport(cmd.Context(), threshold)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, rep.Content, 0644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d stalled application(s) written to %s\n", rep.Items, out)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&threshold, "threshold", 0, "idle time before an application counts as stalled (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "stalled.xlsx", "output file")
	return cmd
}
