package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/ethics-review/internal/container"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/pkg/utils"
)

func newApplicationCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "application",
		Short: "Submit applications for review",
	}
	cmd.AddCommand(newApplicationSubmitCommand(app))
	return cmd
}

func newApplicationSubmitCommand(app *App) *cobra.Command {
	var owner, title string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record an application and place it at the first review stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.ValidateUserID(owner); err != nil {
				return err
			}
			title = utils.SanitizeString(title)
			if title == "" {
				return fmt.Errorf("title is required")
			}

			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				var state *entity.ProcessState
				// the application is only recorded when it can be routed
				err := c.DB().WithTransaction(cmd.Context(), func(ctx context.Context) error {
					a := &entity.Application{OwnerUserID: owner, Title: title}
					if err := c.Repositories().Applications.Create(ctx, a); err != nil {
						return err
					}
					var err error
					state, err = c.WorkflowEngine().Initialize(ctx, a.ID)
					return err
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, state)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "submitting user ID")
	cmd.Flags().StringVar(&title, "title", "", "application title")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
