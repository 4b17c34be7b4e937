package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/osteo-api/pkg/messaging"
	"github.com/jwalitptl/osteo-api/pkg/messaging/redis"
)

func eventsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published office events",
	}
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print office events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			broker, err := redis.NewRedisBroker(ctx, brokerConfig(cfg), log, nil)
			if err != nil {
				return err
			}
			defer broker.Close()

			messages, err := broker.Subscribe(ctx, cfg.Redis.Channel)
			if err != nil {
				return err
			}
			for raw := range messages {
				var msg messaging.Message
				if err := json.Unmarshal(raw, &msg); err != nil {
					log.Warn().Err(err).Msg("skipping malformed message")
					continue
				}
				cmd.Printf("%s %s %s\n", msg.ID, msg.Type, msg.Payload)
			}
			return nil
		},
	}
	cmd.AddCommand(tailCmd)
	return cmd
}
