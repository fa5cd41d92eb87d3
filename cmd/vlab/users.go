package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

var (
	nameFlag     string
	emailFlag    string
	passwordFlag string
	roleFlag     string
)

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"user", "u"},
	Short:   "Manage portal users",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user",
	RunE:  runUsersAdd,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE:  runUsersList,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersAddCmd, usersListCmd)

	usersAddCmd.Flags().StringVar(&nameFlag, "name", "", "Full name")
	usersAddCmd.Flags().StringVar(&emailFlag, "email", "", "Email address")
	usersAddCmd.Flags().StringVar(&passwordFlag, "password", "", "Password")
	usersAddCmd.Flags().StringVar(&roleFlag, "role", string(storage.RoleStudent), "Role (student, instructor)")
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	role := storage.Role(roleFlag)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q (use student or instructor)", roleFlag)
	}

	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	u, err := svc.Register(ctx, nameFlag, emailFlag, passwordFlag, role)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s %s <%s> as user %d\n", u.Role, u.Name, u.Email, u.ID)
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(context.Background())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	fmt.Printf("%-6s %-12s %-25s %s\n", "ID", "ROLE", "NAME", "EMAIL")
	fmt.Println(strings.Repeat("─", 75))
	for _, u := range users {
		fmt.Printf("%-6d %-12s %-25s %s\n", u.ID, u.Role, truncate(u.Name, 23), u.Email)
	}
	return nil
}
