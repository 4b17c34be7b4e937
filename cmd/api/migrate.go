package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/osteo-api/internal/repository/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var upSteps int
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, func(db *sqlx.DB) error {
				if err := postgres.Migrate(db, upSteps); err != nil {
					return err
				}
				return printVersion(cmd, db)
			})
		},
	}
	upCmd.Flags().IntVar(&upSteps, "steps", 0, "apply at most this many migrations (0 applies all)")

	var downSteps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if downSteps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			return withDB(*configPath, func(db *sqlx.DB) error {
				if err := postgres.Migrate(db, -downSteps); err != nil {
					return err
				}
				return printVersion(cmd, db)
			})
		},
	}
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, func(db *sqlx.DB) error {
				return printVersion(cmd, db)
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func printVersion(cmd *cobra.Command, db *sqlx.DB) error {
	version, dirty, err := postgres.MigrationVersion(db)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("schema version %d (%s)\n", version, state)
	return nil
}

func withDB(configPath string, fn func(db *sqlx.DB) error) error {
	cfg, _, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
