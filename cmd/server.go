/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/db"
	"github.com/mentorlink/apiserver/internal/server"
)

const shutdownTimeout = 15 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the mentorlink backend server",
	Long: `Starts the mentorlink backend server. Usage:

	mentorlink server [--migrate]
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
			if err := db.MigrateUp(cfg.Database); err != nil {
				return err
			}
			logger.Info(ctx, "migrations applied")
		}

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
}
