/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/db"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return db.MigrateUp(config.LoadConfig().Database)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		return db.MigrateDown(config.LoadConfig().Database, steps)
	},
}

var migrateRepairRolesCmd = &cobra.Command{
	Use:   "repair-roles",
	Short: "Assign the mentee role to users stored without one",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		accounts, closeDB, err := openAccounts(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()

		repaired, err := accounts.RepairRoles(cmd.Context())
		if err != nil {
			return fmt.Errorf("repair roles: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repaired %d user(s)\n", repaired)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateRepairRolesCmd)

	migrateDownCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
}
