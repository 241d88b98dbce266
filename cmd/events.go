/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/mq"
)

// eventsCmd groups account event commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print account events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("MQ_BACKEND is none; nothing to tail")
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn(context.Background(), "failed to close message queue", "error", err)
			}
		}()

		out := cmd.OutOrStdout()
		err = client.Subscribe(ctx, cfg.MQ.AccountChannel, func(ctx context.Context, msg mq.Message) error {
			_, err := fmt.Fprintf(out, "%s %s %s\n", msg.ID, msg.EventType(), msg.Data)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
