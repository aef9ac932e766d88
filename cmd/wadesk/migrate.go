package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wadesk/wadesk/internal/config"
	"github.com/wadesk/wadesk/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Runs the schema auto-migration for all wadesk tables. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateCmd(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "wadesk.yaml", "path to wadesk config file")
	return cmd
}

func runMigrateCmd(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)

	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}
