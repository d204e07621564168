package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"pestops-bknd/internal/models"
	"pestops-bknd/internal/services"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var (
	userEmail    string
	userName     string
	userPassword string
	userRole     string
	listRole     string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local account",
	Long: `Create a local account with a bcrypt-hashed password.

Example:
  opsctl user create --email admin@example.com --name Admin --role admin --password s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userPassword == "" {
			userPassword = os.Getenv("OPSCTL_PASSWORD")
		}
		if userPassword == "" {
			return errors.New("--password or OPSCTL_PASSWORD is required")
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		u, err := services.NewUserService(e.db).Create(cmd.Context(), models.UserInput{
			Email:    userEmail,
			Name:     userName,
			Password: userPassword,
			Role:     models.Role(userRole),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %s %s (%s)\n", u.Role, u.Email, u.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts, optionally filtered by --role",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		users, err := services.NewUserService(e.db).List(cmd.Context(), models.Role(listRole))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.ID, u.Email, u.Role, u.Active)
		}
		return tw.Flush()
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleAgent), "agent, supervisor, client or admin")
	_ = userCreateCmd.MarkFlagRequired("email")

	userListCmd.Flags().StringVar(&listRole, "role", "", "only this role")

	userCmd.AddCommand(userCreateCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}
