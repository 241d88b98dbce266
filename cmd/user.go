/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/services"
)

// userCmd groups account maintenance commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the administrator account, or promote an existing one",
	Long: `Creates an active administrator account. Flags default to the
ADMIN_EMAIL, ADMIN_PASSWORD, ADMIN_FIRST_NAME and ADMIN_LAST_NAME
environment variables. An existing account with the same email is
promoted to admin and keeps its password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		input := services.RegisterInput{
			FirstName: flagOr(cmd, "first-name", cfg.Admin.FirstName),
			LastName:  flagOr(cmd, "last-name", cfg.Admin.LastName),
			Email:     flagOr(cmd, "email", cfg.Admin.Email),
			Password:  flagOr(cmd, "password", cfg.Admin.Password),
		}
		if strings.TrimSpace(input.Email) == "" || input.Password == "" {
			return errors.New("admin email and password are required")
		}

		accounts, closeDB, err := openAccounts(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()

		admin, created, err := accounts.EnsureAdmin(cmd.Context(), input)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", admin.Email, admin.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (id %d) already present\n", admin.Email, admin.ID)
		}
		return nil
	},
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if value, _ := cmd.Flags().GetString(name); value != "" {
		return value
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(createAdminCmd)

	createAdminCmd.Flags().String("email", "", "Administrator email")
	createAdminCmd.Flags().String("password", "", "Administrator password")
	createAdminCmd.Flags().String("first-name", "", "Administrator first name")
	createAdminCmd.Flags().String("last-name", "", "Administrator last name")
}
