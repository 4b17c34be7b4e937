package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/osteo-api/pkg/auth"
)

// tokenCmd issues access tokens. Users are managed outside this service.
func tokenCmd(configPath *string) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			userID, err := uuid.Parse(user)
			if err != nil {
				return err
			}
			token, err := auth.NewJWTService(cfg.Auth.JWTSecret).GenerateAccessToken(userID, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
