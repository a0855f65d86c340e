package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/ethics-review/internal/container"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
	"github.com/garyjia/ethics-review/pkg/utils"
)

func newUserCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(newUserAddCommand(app))
	return cmd
}

func newUserAddCommand(app *App) *cobra.Command {
	var u entity.User

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create or update a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.ID = args[0]
			if err := utils.ValidateUserID(u.ID); err != nil {
				return err
			}
			if err := utils.ValidateEmail(u.Email); err != nil {
				return err
			}
			u.Name = utils.SanitizeString(u.Name)
			u.Role = domainwf.NewRole(u.Role).String()
			if u.Role == "" {
				return fmt.Errorf("role is required")
			}

			return app.withContainer(cmd.Context(), func(c *container.Container) error {
				if err := c.Repositories().Users.Upsert(cmd.Context(), &u); err != nil {
					return err
				}
				return printJSON(cmd, u)
			})
		},
	}
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address")
	cmd.Flags().StringVar(&u.Role, "role", "", "reviewer role, e.g. faculty_admin")
	cmd.Flags().StringVar(&u.LarkUserID, "lark-id", "", "Lark user ID for message delivery")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
