package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/ethics-review/internal/container"
)

func newSweepCommand(app *App) *cobra.Command {
	var threshold time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Notify reviewers about applications stalled at one stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				if threshold == 0 {
					threshold = c.Config().Sweeper.Threshold
				}
				result, err := c.Services().Escalation.Sweep(cmd.Context(), threshold)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().DurationVar(&threshold, "threshold", 0, "idle time before an application counts as stalled (default from config)")
	return cmd
}
