/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/db"
	"github.com/mentorlink/apiserver/internal/logging"
	"github.com/mentorlink/apiserver/internal/services"
	"github.com/mentorlink/apiserver/internal/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mentorlink",
	Short: "Mentorlink account and authorization server",
	Long: `Mentorlink serves account registration, login and role-gated
administration for the mentorship marketplace.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) logging.Logger {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// openAccounts connects to Postgres and builds an account service for
// maintenance commands. It does not issue tokens.
func openAccounts(ctx context.Context, cfg config.Config, logger logging.Logger) (*services.AccountService, func(), error) {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost, int64(cfg.Auth.HashConcurrency))
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	accounts := services.NewAccountService(
		store.NewUserRepository(conn, cfg.Database.QueryTimeout),
		services.NewSQLTransactor(conn, cfg.Database.QueryTimeout),
		hasher,
		nil,
		services.WithLogger(logger),
	)
	return accounts, func() { _ = conn.Close() }, nil
}
