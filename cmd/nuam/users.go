package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/nuam/internal/cli"
	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users and roles",
	}
	cmd.AddCommand(usersAddCmd(), usersListCmd(), rolesCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user",
		Example: `  nuam users add jperez --role broker --name "Juan Perez"
  nuam users add root --superuser`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleName, _ := cmd.Flags().GetString("role")
			name, _ := cmd.Flags().GetString("name")
			superuser, _ := cmd.Flags().GetBool("superuser")

			user := &model.User{
				Username:    strings.TrimSpace(args[0]),
				DisplayName: name,
				IsSuperuser: superuser,
			}
			if roleName != "" {
				role, ok := model.ParseRole(roleName)
				if !ok {
					return common.NewUserError(fmt.Sprintf("unknown role %q", roleName), common.ErrInvalidInput)
				}
				user.Role = role
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateUser(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created user %s (#%d)", user.Username, user.ID)))
			return nil
		},
	}

	cmd.Flags().String("role", "", "role: broker, analyst, administrator, auditor or manager")
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().Bool("superuser", false, "grant every permission")

	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				super := ""
				if u.IsSuperuser {
					super = cli.SuccessIcon
				}
				rows = append(rows, []string{fmt.Sprint(u.ID), u.Username, u.DisplayName, string(u.Role), super})
			}
			fmt.Println(cli.RenderTable([]string{"ID", "Username", "Name", "Role", "Superuser"}, rows))
			return nil
		},
	}
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the seeded roles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			roles, err := store.ListRoles(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(roles))
			for _, r := range roles {
				rows = append(rows, []string{string(r.Name), r.Description})
			}
			fmt.Println(cli.RenderTable([]string{"Role", "Description"}, rows))
			return nil
		},
	}
}
