package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/garyjia/ethics-review/internal/container"
)

func newTemplateCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage workflow templates",
	}
	cmd.AddCommand(
		newTemplateCreateCommand(app),
		newTemplatePromoteCommand(app),
		newTemplateListCommand(app),
	)
	return cmd
}

func newTemplateCreateCommand(app *App) *cobra.Command {
	var promote bool

	cmd := &cobra.Command{
		Use:     "create <name> <stage> [stage...]",
		Short:   "Create a template from an ordered list of stages",
		Example: "  ethics-review template create default faculty committee rectorate --promote",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				tpl, err := c.Services().Templates.Create(cmd.Context(), args[0], args[1:], promote)
				if err != nil {
					return err
				}
				return printJSON(cmd, tpl)
			})
		},
	}
	cmd.Flags().BoolVar(&promote, "promote", false, "make the new template current")
	return cmd
}

func newTemplatePromoteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <id>",
		Short: "Make a template current for new submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid template id: %s", args[0])
			}
			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				tpl, err := c.Services().Templates.Promote(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd, tpl)
			})
		},
	}
}

func newTemplateListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				list, err := c.Services().Templates.List(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, list)
			})
		},
	}
}
